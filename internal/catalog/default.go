package catalog

// Default returns the built-in twelve-question catalog. Each call returns a
// fresh slice.
func Default() []Challenge {
	builtin := []Challenge{
		{Text: "Do you remember locking your door tonight?", Kind: Plain},
		{Text: "Can you hear that noise?", Kind: Plain, Options: []string{"Yes", "What noise?"}},
		{Text: "Have you noticed the shadows moving?", Kind: Plain},
		{Text: "Do you believe in ghosts?", Kind: Plain},
		{Text: "Would you know if something followed you home?", Kind: Plain},
		{Text: "Can you feel the temperature dropping?", Kind: Plain},

		{Text: "Are you alone?", Kind: CameraTrigger},
		{Text: "Do you feel like you're being watched?", Kind: CameraTrigger},
		{Text: "What's that standing in the corner of your room?", Kind: CameraTrigger, Warning: "D O N ' T  M O V E"},

		{Text: "Did you hear that whisper?", Kind: AudioTrigger},
		{Text: "Was that a footstep behind you?", Kind: AudioTrigger},
		{Text: "Did you catch that shadow moving?", Kind: AudioTrigger},
	}
	for i := range builtin {
		builtin[i] = builtin[i].withDefaults()
	}
	return builtin
}
