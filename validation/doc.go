// Package validation validates configuration and request structs using
// go-playground/validator struct tags.
//
//	type EngineConfig struct {
//	    Binary string `mapstructure:"binary" validate:"required"`
//	    Limit  string `mapstructure:"limit" validate:"size"`
//	}
//	err := validation.Validate(cfg)
//
// Field names in messages follow the mapstructure (or json) tag, so an
// error reads like the configuration key the operator has to fix.
package validation
