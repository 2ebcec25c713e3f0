package featureflag

type Flag string

const (
	// Makes the visible cells walk descend to the leaves.
	FlagDisableLOD Flag = "DISABLE_LOD"

	// Makes the world only maintain a ground tree.
	FlagDisableCanvasTree Flag = "DISABLE_CANVAS_TREE"

	// Turns off the websocket change feed.
	FlagDisableChangeFeed Flag = "DISABLE_CHANGE_FEED"
)
