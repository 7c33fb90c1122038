package featureflag

type Flag string

const (
	FlagDisableTrace           Flag = "DISABLE_TRACE"
	FlagDisableRealtimeFeed    Flag = "DISABLE_REALTIME_FEED"
	FlagDisableSensors         Flag = "DISABLE_SENSORS"
	FlagDisableRandomPlacement Flag = "DISABLE_RANDOM_PLACEMENT"
)
