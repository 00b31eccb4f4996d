package engine

// Params exposes request parameters by name. A missing parameter is "".
type Params interface {
	Get(name string) string
}

// MapParams is a Params backed by a map.
type MapParams map[string]string

func (p MapParams) Get(name string) string { return p[name] }

// Request carries what a reader needs from the incoming request.
type Request struct {
	Params   Params
	Language string
}

func (r Request) param(name string) string {
	if r.Params == nil {
		return ""
	}
	return r.Params.Get(name)
}
