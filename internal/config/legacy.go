package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	amerrors "github.com/Aman-CERP/amanrdf/internal/errors"
)

// LoadLegacy reads the tab-separated key/value format used by earlier
// deployments on top of the defaults and validates the result:
//
//	indexing.base.name	bindex
//	indexing.extend	yes
//	indexing.ext.fields	title;http://purl.org/dc/terms/title creator;http://purl.org/dc/terms/creator
//	elastic.address	http://localhost
//	elastic.port	9200
//
// Flags accept only "yes" and "no". Unknown keys are errors.
func LoadLegacy(path string) (*Config, error) {
	cfg := NewConfig()
	if err := cfg.loadLegacyFile(path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadLegacyFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return amerrors.New(amerrors.ErrCodeConfigNotFound, fmt.Sprintf("open config file %s", path), err)
	}
	defer func() { _ = f.Close() }()

	if err := c.decodeLegacy(f); err != nil {
		return amerrors.ConfigError(fmt.Sprintf("%s is not a proper config file", path), err)
	}
	return nil
}

// decodeLegacy applies legacy key/value lines to c. A legacy file that
// names an extension field list turns property indexing on.
func (c *Config) decodeLegacy(r io.Reader) error {
	var address, port string
	sc := bufio.NewScanner(r)
	lineNo := 0

	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "\t")
		if !ok {
			return fmt.Errorf("line %d: expected <key>TAB<value>, got %q", lineNo, line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		var err error
		switch key {
		case "indexing.base.name":
			c.Indexing.Base.Name = value
		case "indexing.base.include_uri":
			c.Indexing.Base.IncludeURI, err = parseYesNo(value)
		case "indexing.base.include_namespace":
			c.Indexing.Base.IncludeNamespace, err = parseYesNo(value)
		case "indexing.extend":
			c.Indexing.Extended.Enabled, err = parseYesNo(value)
		case "indexing.ext.name":
			c.Indexing.Extended.Name = value
		case "indexing.ext.fields":
			c.Indexing.Extended.Fields, err = parseLegacyFields(value)
		case "indexing.ext.include_sub":
			c.Indexing.Extended.IncludeSubject, err = parseYesNo(value)
		case "indexing.ext.include_obj":
			c.Indexing.Extended.IncludeObject, err = parseYesNo(value)
		case "indexing.data":
			info, statErr := os.Stat(value)
			if statErr != nil || !info.IsDir() {
				err = fmt.Errorf("%s is not a proper folder", value)
			}
			c.Indexing.Data = value
		case "indexing.instances":
			c.Indexing.Workers, err = strconv.Atoi(value)
		case "indexing.bulk_size":
			c.Indexing.BulkSize, err = strconv.Atoi(value)
		case "elastic.address":
			address = value
		case "elastic.port":
			port = value
		default:
			return fmt.Errorf("line %d: %s not recognized", lineNo, key)
		}
		if err != nil {
			return fmt.Errorf("line %d: %s: %w", lineNo, key, err)
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}

	if address != "" || port != "" {
		if address == "" {
			address = "http://localhost"
		}
		if port != "" {
			address = strings.TrimRight(address, "/") + ":" + port
		}
		c.Backend.Kind = BackendRemote
		c.Backend.Address = address
	}
	return nil
}

func parseYesNo(v string) (bool, error) {
	switch v {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	}
	return false, fmt.Errorf("%q not recognized, expected yes or no", v)
}

// parseLegacyFields splits "alias;predicate alias;predicate ..." entries.
func parseLegacyFields(v string) ([]Field, error) {
	entries := strings.Fields(v)
	if len(entries) == 0 {
		return nil, fmt.Errorf("no fields listed")
	}
	fields := make([]Field, 0, len(entries))
	for _, e := range entries {
		alias, predicate, ok := strings.Cut(e, ";")
		if !ok || alias == "" || predicate == "" {
			return nil, fmt.Errorf("field entry %q must be alias;predicate", e)
		}
		fields = append(fields, Field{Alias: alias, Predicate: predicate})
	}
	return fields, nil
}
