package messageinput

import (
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/ras0q/lazycompose/internal/chat"
)

type directiveKind int

const (
	directiveAttach directiveKind = iota + 1
	directivePoll
	directiveLocation
)

// directive is an input line starting with ":" that acts on the composition instead of being
// sent as text.
type directive struct {
	kind directiveKind

	paths []string

	pollName    string
	pollOptions []string

	latitude  float64
	longitude float64
	duration  time.Duration
}

var errUnknownDirective = errors.New("unknown directive")

// parseDirective reports ok=false when input is plain text.
func parseDirective(input string) (d directive, ok bool, err error) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, ":") {
		return directive{}, false, nil
	}

	name, rest, _ := strings.Cut(input[1:], " ")
	rest = strings.TrimSpace(rest)

	switch name {
	case "attach":
		paths := strings.Fields(rest)
		if len(paths) == 0 {
			return directive{}, true, errors.New("usage: :attach <path>...")
		}
		return directive{kind: directiveAttach, paths: paths}, true, nil

	case "poll":
		parts := strings.Split(rest, "|")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) < 3 || parts[0] == "" {
			return directive{}, true, errors.New("usage: :poll <name> | <option> | <option>...")
		}
		return directive{kind: directivePoll, pollName: parts[0], pollOptions: parts[1:]}, true, nil

	case "location":
		fields := strings.Fields(rest)
		if len(fields) < 2 || len(fields) > 3 {
			return directive{}, true, errors.New("usage: :location <lat> <lon> [duration]")
		}
		d := directive{kind: directiveLocation}
		if d.latitude, err = strconv.ParseFloat(fields[0], 64); err != nil {
			return directive{}, true, errors.Wrap(err, "parse latitude")
		}
		if d.longitude, err = strconv.ParseFloat(fields[1], 64); err != nil {
			return directive{}, true, errors.Wrap(err, "parse longitude")
		}
		if len(fields) == 3 {
			if d.duration, err = time.ParseDuration(fields[2]); err != nil {
				return directive{}, true, errors.Wrap(err, "parse duration")
			}
		}
		return d, true, nil

	default:
		return directive{}, true, errors.Wrapf(errUnknownDirective, ":%s", name)
	}
}

// readFile loads path as an upload candidate.
func readFile(path string) (chat.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return chat.File{}, errors.Wrapf(err, "read %s", path)
	}

	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if base, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = base
	}

	return chat.File{
		Name:     filepath.Base(path),
		MimeType: mimeType,
		Size:     int64(len(data)),
		Data:     data,
	}, nil
}
