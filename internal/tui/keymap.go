package tui

const (
	KeyQuit     = "q"
	KeyCtrlC    = "ctrl+c"
	KeyToggle   = " "
	KeySave     = "s"
	KeyLanguage = "l"
	KeyHaptics  = "h"
	KeyDismiss  = "esc"
)
