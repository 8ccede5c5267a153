package ui

import "sync"

const defaultLoadingText = "Loading..."

// ButtonState is what a client renders for a button.
type ButtonState struct {
	Text     string `json:"text"`
	Disabled bool   `json:"disabled"`
	Loading  bool   `json:"loading"`
}

// Button tracks the loading state of one action button.
type Button struct {
	mu       sync.Mutex
	text     string
	original string
	disabled bool
	loading  bool
}

// NewButton returns an enabled button showing text.
func NewButton(text string) *Button {
	return &Button{text: text}
}

// SetLoading switches the button into or out of its loading state. Entering
// loading remembers the current text; leaving restores it. An empty loading
// text shows "Loading...".
func (b *Button) SetLoading(loading bool, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if loading {
		if !b.loading {
			b.original = b.text
		}
		if text == "" {
			text = defaultLoadingText
		}
		b.text = text
		b.disabled = true
		b.loading = true
		return
	}
	if b.loading {
		b.text = b.original
	}
	b.disabled = false
	b.loading = false
}

// State returns a copy of the button state.
func (b *Button) State() ButtonState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return ButtonState{Text: b.text, Disabled: b.disabled, Loading: b.loading}
}
