package models

// World represents a single game server instance.
type World struct {
	ID       int      `json:"id"`
	Types    []string `json:"types"`
	Address  string   `json:"address"`
	Activity string   `json:"activity"`
	Location int      `json:"location"`
	Players  int      `json:"players"`
}

// WorldsSnapshot is the payload cached for the worlds domain.
type WorldsSnapshot struct {
	Worlds []World `json:"worlds"`
}
