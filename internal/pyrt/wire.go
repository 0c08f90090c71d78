package pyrt

const (
	opExec    = "exec"
	opLookup  = "lookup"
	opCall    = "call"
	opRelease = "release"
	opExit    = "exit"
)

// Value tags.
const (
	tagBytes  = "b"
	tagString = "s"
	tagInt    = "i"
	tagMap    = "m"
	tagNone   = "n"
	tagBool   = "v"
	tagRef    = "r"
)

type request struct {
	Op     string      `msgpack:"op"`
	Ref    uint64      `msgpack:"ref,omitempty"`
	Name   string      `msgpack:"name,omitempty"`
	Path   string      `msgpack:"path,omitempty"`
	File   string      `msgpack:"file,omitempty"`
	Source string      `msgpack:"source,omitempty"`
	Args   []wireValue `msgpack:"args,omitempty"`
}

type response struct {
	OK    bool      `msgpack:"ok"`
	Kind  string    `msgpack:"kind,omitempty"`
	Err   string    `msgpack:"err,omitempty"`
	Value wireValue `msgpack:"value"`
}

type wireValue struct {
	T string            `msgpack:"t"`
	B []byte            `msgpack:"b,omitempty"`
	S string            `msgpack:"s,omitempty"`
	I int64             `msgpack:"i,omitempty"`
	M map[string]string `msgpack:"m,omitempty"`
	V bool              `msgpack:"v,omitempty"`
	R uint64            `msgpack:"r,omitempty"`
}
