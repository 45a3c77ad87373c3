package theme

func builtins() []Theme {
	return []Theme{
		{
			Name:       "default",
			Background: "#1e1e1e",
			Foreground: "#d4d4d4",
			Dim:        "#6B7280",
			Accent:     "#7C3AED",
			Warn:       "#e5c07b",
			Urgent:     "#EF4444",
		},
		{
			Name:       "gruvbox",
			Background: "#282828",
			Foreground: "#ebdbb2",
			Dim:        "#928374",
			Accent:     "#fe8019",
			Warn:       "#fabd2f",
			Urgent:     "#fb4934",
		},
		{
			Name:       "nord",
			Background: "#2e3440",
			Foreground: "#eceff4",
			Dim:        "#4c566a",
			Accent:     "#88c0d0",
			Warn:       "#ebcb8b",
			Urgent:     "#bf616a",
		},
		{
			Name:       "catppuccin",
			Background: "#1e1e2e",
			Foreground: "#cdd6f4",
			Dim:        "#6c7086",
			Accent:     "#cba6f7",
			Warn:       "#f9e2af",
			Urgent:     "#f38ba8",
		},
		{
			Name:       "dracula",
			Background: "#282a36",
			Foreground: "#f8f8f2",
			Dim:        "#6272a4",
			Accent:     "#bd93f9",
			Warn:       "#f1fa8c",
			Urgent:     "#ff5555",
		},
		{
			Name:       "tokyo-night",
			Background: "#1a1b26",
			Foreground: "#c0caf5",
			Dim:        "#565f89",
			Accent:     "#7aa2f7",
			Warn:       "#e0af68",
			Urgent:     "#f7768e",
		},
	}
}
