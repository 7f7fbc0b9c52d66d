package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func configValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report JSON field names, matching what the API and front-end use.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Normalize folds the legacy single subject into Subjects, primary first,
// and defaults the difficulty to medium.
func (c TestConfig) Normalize() TestConfig {
	out := c
	out.Subjects = append([]string(nil), c.Subjects...)
	if c.Subject != "" && (len(out.Subjects) == 0 || out.Subjects[0] != c.Subject) {
		filtered := out.Subjects[:0]
		for _, s := range out.Subjects {
			if s != c.Subject {
				filtered = append(filtered, s)
			}
		}
		out.Subjects = append([]string{c.Subject}, filtered...)
	}
	if len(out.Subjects) > 0 {
		out.Subject = out.Subjects[0]
	}
	out.Difficulty = strings.ToLower(strings.TrimSpace(out.Difficulty))
	if out.Difficulty == "" {
		out.Difficulty = DifficultyMedium
	}
	return out
}

// Validate normalizes the configuration and checks it. Failures wrap
// ErrInvalidConfig and list the offending fields.
func (c TestConfig) Validate() (TestConfig, error) {
	cfg := c.Normalize()
	if err := configValidator().Struct(cfg); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			fields := make([]string, 0, len(ve))
			for _, fe := range ve {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return cfg, fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(fields, ", "))
		}
		return cfg, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}
