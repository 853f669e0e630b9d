package chat

import (
	"github.com/openclaw/kmsg/pkg/ax"
)

// EnterText focuses field, clears it, and writes text with write-back
// verification at every step. Shared by the search flow and by message
// composition.
func (r *Resolver) EnterText(field ax.Element, text string) error {
	if err := r.focusField(field); err != nil {
		return err
	}
	if err := r.clearField(field); err != nil {
		return err
	}
	return r.enterQuery(field, text)
}

// FocusVerified focuses field and confirms the focus landed.
func (r *Resolver) FocusVerified(field ax.Element) error {
	return r.focusField(field)
}
