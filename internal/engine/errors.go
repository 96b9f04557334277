package engine

import "errors"

// Engine client error types.
var (
	ErrMissingCredentials = errors.New("missing engine credentials (XF_APP_ID, XF_APP_KEY, XF_APP_SECRET)")
	ErrMissingLLMKey      = errors.New("missing language-model credential (LLM_API_KEY)")
)
