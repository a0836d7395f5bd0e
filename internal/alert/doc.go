// Package alert presents jumpscares.
//
// A [Coordinator] turns detection triggers into alert sessions. At most one
// session is live at a time: a trigger that arrives while the visual alert
// is on screen is suppressed. A started session fans out concurrently to
// the actuator, the audio player and the visual alert, then blocks the
// caller until the visual alert is torn down or the teardown wait expires.
//
// [Visual] owns a full-screen [Surface]. It renders the configured image
// scaled to the surface bounds, or the trigger label as large centred text
// when the image is missing. [TerminalSurface] implements Surface with
// bubbletea on the alternate screen.
//
// Every presentation failure is logged and swallowed; nothing in this
// package ends a session.
package alert
