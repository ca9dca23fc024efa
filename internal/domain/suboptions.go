package domain

import (
	"encoding/json"
	"strings"
)

// SubOptions are the structured per-mode flags stored alongside a job's prompt.
type SubOptions struct {
	ShadowOption     string `json:"shadow_option,omitempty"`
	ModelGender      string `json:"model_gender,omitempty"`
	SceneEnvironment string `json:"scene_environment,omitempty"`
}

// IsZero reports whether no option is set.
func (o SubOptions) IsZero() bool {
	return o.ShadowOption == "" && o.ModelGender == "" && o.SceneEnvironment == ""
}

// Encode serialises the options for the job's prompt column. Empty options
// encode to the empty string.
func (o SubOptions) Encode() string {
	o = o.normalized()
	if o.IsZero() {
		return ""
	}
	b, err := json.Marshal(o)
	if err != nil {
		return ""
	}
	return string(b)
}

// ParseSubOptions decodes the prompt side-channel. Callers that must tolerate
// malformed metadata use the zero value on error.
func ParseSubOptions(raw string) (SubOptions, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return SubOptions{}, nil
	}
	var o SubOptions
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		return SubOptions{}, err
	}
	return o.normalized(), nil
}

func (o SubOptions) normalized() SubOptions {
	return SubOptions{
		ShadowOption:     strings.TrimSpace(o.ShadowOption),
		ModelGender:      strings.TrimSpace(o.ModelGender),
		SceneEnvironment: strings.TrimSpace(o.SceneEnvironment),
	}
}
