package proto

type Proto uint8

const (
	Unknown Proto = iota
	HTTP10
	HTTP11
)

func (p Proto) String() string {
	switch p {
	case HTTP10:
		return "HTTP/1.0"
	case HTTP11:
		return "HTTP/1.1"
	default:
		return "unknown protocol"
	}
}

// Parse recognizes exactly the two version literals the server speaks.
// Anything else, including truncated tokens such as "HTTP/1", is Unknown.
func Parse(token string) Proto {
	switch token {
	case "HTTP/1.0":
		return HTTP10
	case "HTTP/1.1":
		return HTTP11
	default:
		return Unknown
	}
}
