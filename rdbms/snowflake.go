package rdbms

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/relloyd/cdcpipe/constants"
	"github.com/relloyd/cdcpipe/logger"
	"github.com/relloyd/cdcpipe/rdbms/shared"
	sf "github.com/snowflakedb/gosnowflake"
)

type SnowflakeConnectionDetails struct {
	Account   string `json:"account" errorTxt:"Snowflake account" mandatory:"yes"`
	DBName    string `json:"database" errorTxt:"Snowflake db name" mandatory:"yes"`
	Schema    string `json:"schema" errorTxt:"Snowflake schema" mandatory:"yes"`
	User      string `json:"user" errorTxt:"Snowflake username" mandatory:"yes"`
	Password  string `json:"password" errorTxt:"Snowflake password" mandatory:"yes"`
	Warehouse string `json:"warehouse,omitempty" errorTxt:"Snowflake warehouse"`
	RoleName  string `json:"role,omitempty" errorTxt:"Snowflake role name"`
}

func (d SnowflakeConnectionDetails) String() string {
	return fmt.Sprintf("%v:%v@%v/%v?schema=%v&warehouse=%v&role=%v",
		d.User,
		"xxxxxxx",
		d.Account,
		d.DBName,
		d.Schema,
		d.Warehouse,
		d.RoleName,
	)
}

// NewSnowflakeConnection opens and pings the Snowflake database specified by dsn.
// The dsn may be prefixed with 'snowflake://'.
func NewSnowflakeConnection(ctx context.Context, log logger.Logger, dsn string) (shared.Connector, error) {
	db, err := sql.Open("snowflake", strings.TrimPrefix(dsn, "snowflake://"))
	if err != nil {
		return nil, errors.Wrap(err, "error opening Snowflake connection")
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "error connecting to Snowflake")
	}
	log.Info("Successful database connection to Snowflake.")
	return shared.NewHpConnection(db, constants.ConnectionTypeSnowflake), nil
}

// SnowflakeGetDSN constructs a DSN based on SnowflakeConnectionDetails.
// The prefix 'snowflake://' is added to the DSN.
func SnowflakeGetDSN(c *SnowflakeConnectionDetails) (string, error) {
	cfg := &sf.Config{
		Account:   c.Account,
		Database:  c.DBName,
		Schema:    c.Schema,
		User:      c.User,
		Password:  c.Password,
		Warehouse: c.Warehouse,
		Role:      c.RoleName,
	}
	dsn, err := sf.DSN(cfg)
	if err != nil {
		return "", err
	}
	re := regexp.MustCompile("^snowflake://")
	if !re.MatchString(dsn) { // if the prefix is missing...
		dsn = fmt.Sprintf("snowflake://%v", dsn)
	}
	return dsn, err
}

// SnowflakeParseDSN converts a Snowflake DSN into native connection details.
// The prefix 'snowflake://' is removed from the DSN if it exists.
func SnowflakeParseDSN(d string) (*SnowflakeConnectionDetails, error) {
	re := regexp.MustCompile("^snowflake://")
	if !re.MatchString(d) {
		return nil, errors.New("unsupported Snowflake DSN format")
	}
	d = strings.TrimPrefix(d, "snowflake://")
	cfg, err := sf.ParseDSN(d)
	if err != nil {
		return nil, err
	}
	retval := &SnowflakeConnectionDetails{
		User:      cfg.User,
		Password:  cfg.Password,
		Schema:    cfg.Schema,
		DBName:    cfg.Database,
		Account:   cfg.Account,
		RoleName:  cfg.Role,
		Warehouse: cfg.Warehouse,
	}
	if cfg.Region != "" { // if region exists in the parsed config...
		retval.Account = fmt.Sprintf("%v.%v", retval.Account, cfg.Region)
	}
	return retval, nil
}

// SnowflakeErrorCode returns the Snowflake error number carried by err, if any.
func SnowflakeErrorCode(err error) (string, bool) {
	var sfErr *sf.SnowflakeError
	if errors.As(err, &sfErr) {
		if sfErr.SQLState != "" {
			return fmt.Sprintf("%06d (%v)", sfErr.Number, sfErr.SQLState), true
		}
		return fmt.Sprintf("%06d", sfErr.Number), true
	}
	return "", false
}
