package model

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidName is returned for user-created records whose name breaks the
// identifier rule.
var ErrInvalidName = errors.New("invalid name")

var reName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Param is a name/value/type record used for job worker params and for
// global variables.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Value       string `json:"value"`
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`
}

// Variable is a global variable; same shape as Param.
type Variable = Param

// Setting is a general setting of the backend.
type Setting struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

const DefaultParamType = "text"

// NewVariable returns a blank variable with default field values.
func NewVariable() Param { return Param{Type: DefaultParamType} }

// ValidName reports whether name is a valid identifier.
func ValidName(name string) bool { return reName.MatchString(name) }

// CheckName returns ErrInvalidName (wrapped with the name) when invalid.
func CheckName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name required", ErrInvalidName)
	}
	if !ValidName(name) {
		return fmt.Errorf("%w: %q must match [a-zA-Z_][a-zA-Z0-9_]*", ErrInvalidName, name)
	}
	return nil
}

// Configuration is the backend configuration snapshot behind the settings screen.
type Configuration struct {
	SAEmail          string    `json:"sa_email"`
	Settings         []Setting `json:"settings"`
	Variables        []Param   `json:"variables"`
	GoogleAdsAuthURL string    `json:"google_ads_auth_url"`
}

// DefaultConfiguration is what the console shows before (or instead of) a
// successful load.
func DefaultConfiguration() Configuration {
	return Configuration{
		SAEmail:   "Unknown",
		Settings:  []Setting{},
		Variables: []Param{},
	}
}
