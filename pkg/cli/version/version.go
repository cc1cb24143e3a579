package version

type Version struct {
	Version string `json:"version"`
}

var VERSION string

func Get() Version {
	return Version{Version: VERSION}
}
