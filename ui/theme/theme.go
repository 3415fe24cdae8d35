package theme

// Theming for the status window: semantic colors and the ttk styles the
// root view refers to.

import (
	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

const (
	ColorBg        = "#0f172a"
	ColorSurface   = "#1e293b"
	ColorText      = "#f1f5f9"
	ColorTextMuted = "#94a3b8"
	ColorAccent    = "#10b981"
	ColorDanger    = "#ef4444"
	ColorCooldown  = "#f59e0b"
)

// Style names used with Style("state.TLabel") etc.
const (
	StyleStateLabel    = "state.TLabel"
	StyleCooldownLabel = "cooldown.TLabel"
	StyleDangerButton  = "danger.TButton"
	StyleMutedLabel    = "muted.TLabel"
)

// InitStyles activates the base theme and configures the named styles.
func InitStyles() {
	_ = ActivateTheme("azure dark")
	App.Configure(Background(ColorBg))

	StyleConfigure(StyleStateLabel,
		Foreground("white"),
		Background(ColorAccent),
		Padding("4p 2p"),
		Borderwidth(1),
		Relief("groove"),
	)
	StyleConfigure(StyleCooldownLabel,
		Foreground("black"),
		Background(ColorCooldown),
		Padding("4p 2p"),
		Borderwidth(1),
		Relief("groove"),
	)
	StyleConfigure(StyleMutedLabel,
		Foreground(ColorTextMuted),
		Background(ColorSurface),
		Padding("2p 1p"),
	)
	StyleConfigure(StyleDangerButton,
		Background(ColorDanger),
		Foreground("white"),
		Padding("4p 3p"),
		Borderwidth(1),
		Relief("ridge"),
	)
}
