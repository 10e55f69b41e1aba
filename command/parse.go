package command

import "strconv"

func parseUint32(arg, name string) (uint32, error) {
	n, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return 0, &ArgError{Name: name, Reason: "must be an unsigned 32 bit integer", cause: err}
	}
	return uint32(n), nil
}

func parseUint64(arg, name string) (uint64, error) {
	n, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, &ArgError{Name: name, Reason: "must be an unsigned 64 bit integer", cause: err}
	}
	return n, nil
}

func parseBit(arg, name string) (bool, error) {
	switch arg {
	case "0":
		return false, nil
	case "1":
		return true, nil
	default:
		return false, &ArgError{Name: name, Reason: "must be either 0 or 1"}
	}
}
