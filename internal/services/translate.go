package services

import "context"

// Translator is the black-box translation collaborator. The model behind it is
// an external service; nothing in this repository inspects its behavior beyond
// the returned text.
type Translator interface {
	Translate(ctx context.Context, text, targetLang string) (string, error)
	Suggest(ctx context.Context, promptContext string) (string, error)
}
