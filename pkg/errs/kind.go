package errs

//go:generate go run github.com/dmarkham/enumer -type Kind -trimprefix Kind -transform lower -json -output kind.gen.go

// Kind groups error codes into the families callers branch on.
type Kind int

const (
	KindUnknown Kind = iota
	KindInput
	KindState
	KindSecurity
	KindInfrastructure
)
