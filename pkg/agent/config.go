package agent

// Config points the agent at its data directory and the user settings file.
// Live reload only applies to the settings file.
type Config struct {
	DataDir      string `json:"dataDir"`
	SettingsPath string `json:"settingsPath"`
	// Address and Port override the tracking service location from the settings file.
	Address string `json:"address"`
	Port    int    `json:"port"`
	// FrameRate is how many frames per second the agent drives when it acts as the host.
	FrameRate int `json:"frameRate"`
	// CompanionCommand is launched with the first controller. Empty disables it.
	CompanionCommand []string `json:"companionCommand"`
}

const DefaultFrameRate = 90
