package codec

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/wilhg/y8bridge/pkg/errmodel"
	"github.com/wilhg/y8bridge/pkg/protocol"
)

// Outcome is a decoded response. Payload holds the kind's response shape (for
// example *protocol.ScoreSave) and is set whenever the body parsed, even when
// Success is false. Raw is the body exactly as delivered.
type Outcome struct {
	Kind    protocol.RequestKind
	Success bool
	Payload any
	Raw     string
	Err     error
}

type decodeFunc func(body string) (payload any, success bool, err error)

type entry struct {
	decode decodeFunc
	schema string
}

// Codec decodes response bodies with a dispatch table keyed by request kind.
// A Codec is immutable after New and safe for concurrent use.
type Codec struct {
	table    map[protocol.RequestKind]entry
	validate bool
	schemas  map[protocol.RequestKind]*jsonschema.Schema
}

// Option configures a Codec.
type Option func(*Codec)

// WithSchemaValidation checks every JSON body against a loose per-kind schema
// before decoding it into the typed shape.
func WithSchemaValidation() Option { return func(c *Codec) { c.validate = true } }

// New builds the dispatch table. It panics if a built-in schema fails to compile.
func New(opts ...Option) *Codec {
	c := &Codec{table: map[protocol.RequestKind]entry{
		protocol.KindAutoLogin: {decodeAuth, schemaObject},
		protocol.KindLogin:     {decodeAuth, schemaObject},
		protocol.KindRegister:  {decodeAuth, schemaObject},

		protocol.KindAchievementSave: {decodeAchievementSave, schemaSuccessFlag},
		protocol.KindScoreSave:       {decodeScoreSave, schemaSuccessFlag},

		protocol.KindSetData:   {decodeSetData, schemaStatus},
		protocol.KindClearData: {decodeSetData, schemaStatus},
		protocol.KindGetData:   {decodeGetData, schemaObject},

		protocol.KindCustomScore: {decodeScoreTable, schemaErrorCode},
		protocol.KindTables:      {decodeScoreTables, schemaErrorCode},

		protocol.KindShowAd:          {decodeEmpty, ""},
		protocol.KindShare:           {decodeEmpty, ""},
		protocol.KindScoreList:       {decodeEmpty, ""},
		protocol.KindAppRequest:      {decodeEmpty, ""},
		protocol.KindFriendRequest:   {decodeEmpty, ""},
		protocol.KindAchievementList: {decodeEmpty, ""},

		protocol.KindBlacklist: {decodeFlag, ""},
		protocol.KindSponsor:   {decodeFlag, ""},

		protocol.KindSaveScreenshot: {decodeScreenshot, schemaObject},
	}}
	for _, o := range opts {
		o(c)
	}
	if c.validate {
		c.schemas = make(map[protocol.RequestKind]*jsonschema.Schema)
		for kind, e := range c.table {
			if e.schema == "" {
				continue
			}
			sch, err := compileSchema(kind, e.schema)
			if err != nil {
				panic(fmt.Sprintf("codec: schema for %s: %v", kind, err))
			}
			c.schemas[kind] = sch
		}
	}
	return c
}

// Knows reports whether kind has an entry in the dispatch table.
func (c *Codec) Knows(kind protocol.RequestKind) bool {
	_, ok := c.table[kind]
	return ok
}

// Decode parses body according to kind and classifies the result.
func (c *Codec) Decode(kind protocol.RequestKind, body string) Outcome {
	out := Outcome{Kind: kind, Raw: body}
	e, ok := c.table[kind]
	if !ok {
		out.Err = errmodel.Protocol(errmodel.CodeUnknownRequestKind, "no decoder for request kind",
			map[string]any{"kind": string(kind)}, nil)
		return out
	}
	if sch := c.schemas[kind]; sch != nil {
		if err := validateBody(sch, body); err != nil {
			out.Err = invalidPayload(kind, body, err)
			return out
		}
	}
	payload, success, err := e.decode(body)
	if err != nil {
		out.Err = invalidPayload(kind, body, err)
		return out
	}
	out.Payload = payload
	out.Success = success
	if !success {
		out.Err = domainFailure(kind, payload)
	}
	return out
}

// Unquote removes one layer of string encoding from a value the SDK stored
// as a JSON string: `"hello"` becomes hello and `"{\"a\":1}"` becomes {"a":1}.
// Values that are not quoted are returned unchanged.
func Unquote(s string) string {
	var out string
	if err := json.Unmarshal([]byte(s), &out); err == nil {
		return out
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
		return strings.ReplaceAll(s, `\"`, `"`)
	}
	return s
}

func decodeAuth(body string) (any, bool, error) {
	var a protocol.Authorisation
	if err := json.Unmarshal([]byte(body), &a); err != nil {
		return nil, false, err
	}
	ok := a.AuthResponse != nil && a.AuthResponse.Details != nil && a.AuthResponse.Details.PID != ""
	return &a, ok, nil
}

func decodeAchievementSave(body string) (any, bool, error) {
	var v protocol.AchievementSave
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return nil, false, err
	}
	return &v, v.Success, nil
}

func decodeScoreSave(body string) (any, bool, error) {
	var v protocol.ScoreSave
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return nil, false, err
	}
	return &v, v.Success, nil
}

func decodeSetData(body string) (any, bool, error) {
	var v protocol.SetData
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return nil, false, err
	}
	return &v, v.Status == "ok", nil
}

func decodeGetData(body string) (any, bool, error) {
	var wire struct {
		Error    string          `json:"error"`
		Key      string          `json:"key"`
		JSONData json.RawMessage `json:"jsondata"`
	}
	if err := json.Unmarshal([]byte(body), &wire); err != nil {
		return nil, false, err
	}
	v := protocol.GetData{Error: wire.Error, Key: wire.Key}
	if len(wire.JSONData) > 0 && string(wire.JSONData) != "null" {
		// jsondata normally arrives as a JSON string; anything else is kept verbatim.
		if err := json.Unmarshal(wire.JSONData, &v.JSONData); err != nil {
			v.JSONData = string(wire.JSONData)
		}
	}
	v.Value = Unquote(v.JSONData)
	return &v, v.Error == "", nil
}

func decodeScoreTable(body string) (any, bool, error) {
	var v protocol.ScoreTable
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return nil, false, err
	}
	return &v, v.ErrorCode == 0, nil
}

func decodeScoreTables(body string) (any, bool, error) {
	var v protocol.ScoreTables
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return nil, false, err
	}
	return &v, v.ErrorCode == 0, nil
}

func decodeEmpty(string) (any, bool, error) { return protocol.Empty{}, true, nil }

// decodeFlag never fails: an unparseable flag reads as false.
func decodeFlag(body string) (any, bool, error) {
	b, err := strconv.ParseBool(strings.Trim(strings.TrimSpace(body), `"`))
	if err != nil {
		return false, true, nil
	}
	return b, true, nil
}

func decodeScreenshot(body string) (any, bool, error) {
	var v protocol.Screenshot
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return nil, false, err
	}
	return &v, v.Image != "", nil
}

func invalidPayload(kind protocol.RequestKind, body string, cause error) error {
	return errmodel.Protocol(errmodel.CodeInvalidPayload, "response body does not match request kind",
		map[string]any{"kind": string(kind), "body": body}, cause)
}

func domainFailure(kind protocol.RequestKind, payload any) error {
	ctx := map[string]any{"kind": string(kind)}
	switch p := payload.(type) {
	case *protocol.AchievementSave:
		ctx["errorcode"], ctx["errormessage"] = p.ErrorCode, p.ErrorMessage
	case *protocol.ScoreSave:
		ctx["errorcode"], ctx["errormessage"] = p.ErrorCode, p.ErrorMessage
	case *protocol.SetData:
		ctx["status"] = p.Status
	case *protocol.GetData:
		ctx["error"] = p.Error
	case *protocol.ScoreTable:
		ctx["errorcode"] = p.ErrorCode
	case *protocol.ScoreTables:
		ctx["errorcode"] = p.ErrorCode
	case *protocol.Authorisation:
		ctx["status"] = p.Status
	}
	return errmodel.Domain(string(kind)+" reported failure", ctx)
}
