package subsonic

import (
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"

	"github.com/diogo464/sonar-sub000/internal/catalog"
)

// query wraps the request parameters with typed accessors. Unknown keys
// are tolerated and ignored; missing required keys produce a
// RequiredParameterMissing wire error.
type query struct {
	values url.Values
}

func parseQuery(values url.Values) query {
	return query{values: values}
}

func (q query) string(key string) string {
	return q.values.Get(key)
}

func (q query) required(key string) (string, error) {
	value := q.values.Get(key)
	if value == "" {
		return "", codedErrorf(CodeRequiredParamMissing, "required parameter %q is missing", key)
	}
	return value, nil
}

func (q query) int(key string, def int) int {
	value := q.values.Get(key)
	if value == "" {
		return def
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return n
}

// list gathers repeated keys and splits comma-separated values.
func (q query) list(key string) []string {
	var out []string
	for _, value := range q.values[key] {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (q query) id(key string) (catalog.ID, error) {
	value, err := q.required(key)
	if err != nil {
		return 0, err
	}
	id, err := catalog.ParseID(value)
	if err != nil {
		return 0, codedErrorf(CodeDataNotFound, "unknown id %q", value)
	}
	return id, nil
}

func (q query) trackID(key string) (catalog.TrackID, error) {
	value, err := q.required(key)
	if err != nil {
		return 0, err
	}
	id, err := catalog.ParseTrackID(value)
	if err != nil {
		return 0, codedErrorf(CodeDataNotFound, "unknown song id %q", value)
	}
	return id, nil
}

func (q query) playlistID(key string) (catalog.PlaylistID, error) {
	value, err := q.required(key)
	if err != nil {
		return 0, err
	}
	id, err := catalog.ParsePlaylistID(value)
	if err != nil {
		return 0, codedErrorf(CodeDataNotFound, "unknown playlist id %q", value)
	}
	return id, nil
}

// authParams are the credential parameters common to every method.
type authParams struct {
	Username string
	Password string
	Token    string
	Salt     string
	Client   string
	Version  string
	Format   string
}

func parseAuthParams(q query) authParams {
	return authParams{
		Username: q.string("u"),
		Password: q.string("p"),
		Token:    q.string("t"),
		Salt:     q.string("s"),
		Client:   q.string("c"),
		Version:  q.string("v"),
		Format:   q.string("f"),
	}
}

// toQuery renders the canonical query form: only present fields, fixed
// key order.
func (a authParams) toQuery() url.Values {
	values := url.Values{}
	for _, kv := range []struct{ key, value string }{
		{"u", a.Username},
		{"p", a.Password},
		{"t", a.Token},
		{"s", a.Salt},
		{"c", a.Client},
		{"v", a.Version},
		{"f", a.Format},
	} {
		if kv.value != "" {
			values.Set(kv.key, kv.value)
		}
	}
	return values
}

// password returns the plain password, decoding the legacy `enc:` hex
// form.
func (a authParams) password() (string, bool) {
	if a.Password == "" {
		return "", false
	}
	if encoded, ok := strings.CutPrefix(a.Password, "enc:"); ok {
		decoded, err := hex.DecodeString(encoded)
		if err != nil {
			return "", false
		}
		return string(decoded), true
	}
	return a.Password, true
}

func (a authParams) format() format {
	if a.Format == "json" {
		return formatJSON
	}
	return formatXML
}
