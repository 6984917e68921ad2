package config

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// iniLexer switches to a value state after the assignment so values may
// contain any character up to the end of the line.
var iniLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{Name: "Comment", Pattern: `[#;][^\n]*`},
		{Name: "Whitespace", Pattern: `[ \t\r]+`},
		{Name: "EOL", Pattern: `\n`},
		{Name: "Header", Pattern: `\[[^\]\n]*\]`},
		{Name: "Key", Pattern: `[A-Za-z0-9_.-]+`},
		{Name: "Assign", Pattern: `[=:][ \t]*`, Action: lexer.Push("Value")},
	},
	"Value": {
		{Name: "Value", Pattern: `[^\n]+`, Action: lexer.Pop()},
		{Name: "EOL", Pattern: `\n`, Action: lexer.Pop()},
	},
})

type iniFile struct {
	Properties []*iniProperty `( EOL | @@ )*`
	Sections   []*iniSection  `@@*`
}

type iniSection struct {
	Header     string         `@Header`
	Properties []*iniProperty `( EOL | @@ )*`
}

type iniProperty struct {
	Pos   lexer.Position
	Key   string `@Key Assign`
	Value string `@Value?`
}

var iniParser = participle.MustBuild[iniFile](
	participle.Lexer(iniLexer),
	participle.Elide("Comment", "Whitespace"),
)

// iniFields binds section and key names to config fields.
func iniFields(c *Config) map[string]map[string]any {
	return map[string]map[string]any{
		"sensor": {
			"framerate": &c.Sensor.Framerate,
		},
		"output": {
			"output":    &c.Output.Output,
			"mode":      &c.Output.Mode,
			"framerate": &c.Output.Framerate,
			"enabled":   &c.Output.Enabled,
		},
		"monitor": {
			"output":              &c.Monitor.Output,
			"mode":                &c.Monitor.Mode,
			"touchscreen-rotate":  &c.Monitor.TouchscreenRotate,
			"touchscreen-flip-x":  &c.Monitor.TouchscreenFlipX,
			"touchscreen-flip-y":  &c.Monitor.TouchscreenFlipY,
			"touchscreen-res":     &c.Monitor.TouchscreenRes,
			"layers":              &c.Monitor.Layers,
			"exposure-helper-min": &c.Monitor.ExposureHelperMin,
			"exposure-helper-max": &c.Monitor.ExposureHelperMax,
		},
		"encoder": {
			"bitrate": &c.Encoder.Bitrate,
			"enabled": &c.Encoder.Enabled,
		},
	}
}

var iniSectionOrder = []string{"sensor", "output", "monitor", "encoder"}

var iniKeyOrder = map[string][]string{
	"sensor":  {"framerate"},
	"output":  {"output", "mode", "framerate", "enabled"},
	"monitor": {"output", "mode", "touchscreen-rotate", "touchscreen-flip-x", "touchscreen-flip-y", "touchscreen-res", "layers", "exposure-helper-min", "exposure-helper-max"},
	"encoder": {"bitrate", "enabled"},
}

// decodeINI applies every known key in r to c. Unknown sections and keys
// are ignored; underscores in keys are accepted in place of dashes.
func decodeINI(r io.Reader, name string, c *Config) error {
	file, err := iniParser.Parse(name, r)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	fields := iniFields(c)
	for _, s := range file.Sections {
		section := strings.ToLower(strings.TrimSpace(strings.Trim(s.Header, "[]")))
		keys, ok := fields[section]
		if !ok {
			continue
		}
		for _, p := range s.Properties {
			key := strings.ReplaceAll(strings.ToLower(p.Key), "_", "-")
			field, ok := keys[key]
			if !ok {
				continue
			}
			if err := setField(field, strings.TrimSpace(p.Value)); err != nil {
				return fmt.Errorf("config: %s: [%s] %s: %w", p.Pos, section, key, err)
			}
		}
	}
	return nil
}

func setField(field any, v string) error {
	switch f := field.(type) {
	case *string:
		*f = v
	case *int:
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*f = n
	case *bool:
		b, err := parseBool(v)
		if err != nil {
			return err
		}
		*f = b
	case *Resolution:
		return f.UnmarshalText([]byte(v))
	default:
		return fmt.Errorf("unsupported field type %T", field)
	}
	return nil
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "yes", "on":
		return true, nil
	case "no", "off", "":
		return false, nil
	}
	return strconv.ParseBool(v)
}

func formatField(field any) string {
	switch f := field.(type) {
	case *string:
		return *f
	case *int:
		return strconv.Itoa(*f)
	case *bool:
		if *f {
			return "True"
		}
		return "False"
	case *Resolution:
		return f.String()
	}
	return ""
}

func encodeINI(c *Config) []byte {
	var b bytes.Buffer
	fields := iniFields(c)
	for i, section := range iniSectionOrder {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%s]\n", section)
		for _, key := range iniKeyOrder[section] {
			fmt.Fprintf(&b, "%s = %s\n", key, formatField(fields[section][key]))
		}
	}
	return b.Bytes()
}
