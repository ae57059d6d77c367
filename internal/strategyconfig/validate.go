package strategyconfig

import "fmt"

// ValidationError reports an invalid section of the configuration
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks every strategy section
func Validate(cfg *Config) error {
	checks := []struct {
		field string
		check func() error
	}{
		{"dividend", cfg.Dividend.Validate},
		{"fixedweight", cfg.FixedWeight.Validate},
		{"trend", cfg.Trend.Validate},
		{"etf3x", cfg.ETF3x.Validate},
		{"meanrev", cfg.MeanRev.Validate},
		{"smacross", cfg.SMACross.Validate},
	}

	for _, c := range checks {
		if err := c.check(); err != nil {
			return ValidationError{Field: c.field, Message: err.Error()}
		}
	}

	for name, path := range cfg.Screens {
		if path == "" {
			return ValidationError{Field: "screens." + name, Message: "path is required"}
		}
	}

	return nil
}
