package shared

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/xo/dburl"
)

// ConnectionDetails holds the connect string of a logical database connection.
type ConnectionDetails struct {
	Type        string `json:"type" errorTxt:"database type" mandatory:"yes" yaml:"type"`
	LogicalName string `json:"logicalName" yaml:"logicalName"`
	Dsn         string `json:"dsn" errorTxt:"data source name i.e. connect string" mandatory:"yes" yaml:"dsn"`
}

// String redacts passwords and pretty-prints the contents of ConnectionDetails.
func (c ConnectionDetails) String() string {
	return fmt.Sprintf("type = %v; dsn = %v", c.Type, RedactDSN(c.Dsn))
}

// RedactDSN returns dsn with any password replaced.
// DSNs that are not URLs are returned unchanged since they carry no credentials we can find.
func RedactDSN(dsn string) string {
	if !strings.Contains(dsn, "://") {
		return dsn
	}
	u, err := dburl.Parse(dsn)
	if err != nil {
		return "<unparseable dsn>"
	}
	return u.Redacted()
}

// ParseScheme returns the scheme of a URL style DSN.
func ParseScheme(dsn string) (string, error) {
	if dsn == "" {
		return "", errors.New("DSN not found")
	}
	u, err := dburl.Parse(dsn)
	if err != nil {
		return "", errors.Wrap(err, "DSN could not be parsed")
	}
	return u.OriginalScheme, nil
}
