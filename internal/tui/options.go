package tui

type FieldConfig struct {
	ShowWindow      bool
	ShowDescription bool
}

type Option func(*Model)

func DefaultFieldConfig() FieldConfig {
	return FieldConfig{
		ShowWindow:      true,
		ShowDescription: false,
	}
}

func WithFieldConfig(cfg FieldConfig) Option {
	return func(m *Model) {
		m.fields = cfg
	}
}

// WithMarkdownStyle picks the glamour style used for item descriptions.
func WithMarkdownStyle(style string) Option {
	return func(m *Model) {
		switch style {
		case "dark", "light", "notty", "ascii":
			m.markdown.style = style
		}
	}
}
