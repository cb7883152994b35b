package sqlstmt

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Connection owns an ODBC environment and connection handle. It backs any
// number of Statements but is not safe for concurrent use.
type Connection struct {
	env       SQLHENV
	dbc       SQLHDBC
	connected bool
	opts      options
	log       Logger
	metrics   *statementMetrics

	sslCA   string
	sslCert string
	sslKey  string
}

// ServerInfo describes the driver and database behind a connection.
type ServerInfo struct {
	DriverName  string
	DBMSName    string
	DBMSVersion string
}

// NewConnection loads the ODBC driver manager and allocates the environment
// and connection handles. The returned Connection is not yet connected.
func NewConnection(opts ...Option) (*Connection, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if err := initODBC(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	metrics, err := newStatementMetrics(o.provider())
	if err != nil {
		return nil, fmt.Errorf("sqlstmt: create metrics: %w", err)
	}

	// Allocate environment handle
	var env SQLHENV
	ret := AllocHandle(SQL_HANDLE_ENV, SQL_NULL_HANDLE, (*SQLHANDLE)(&env))
	if !IsSuccess(ret) {
		return nil, fmt.Errorf("%w: failed to allocate ODBC environment handle", ErrConnection)
	}

	// Set ODBC version to 3.x
	ret = SetEnvAttr(env, SQL_ATTR_ODBC_VERSION, uintptr(SQL_OV_ODBC3), 0)
	if !IsSuccess(ret) {
		err := wrapDiag(ErrConnection, SQL_HANDLE_ENV, SQLHANDLE(env))
		FreeHandle(SQL_HANDLE_ENV, SQLHANDLE(env))
		return nil, err
	}

	// Allocate connection handle
	var dbc SQLHDBC
	ret = AllocHandle(SQL_HANDLE_DBC, SQLHANDLE(env), (*SQLHANDLE)(&dbc))
	if !IsSuccess(ret) {
		err := wrapDiag(ErrConnection, SQL_HANDLE_ENV, SQLHANDLE(env))
		FreeHandle(SQL_HANDLE_ENV, SQLHANDLE(env))
		return nil, err
	}

	if o.loginTimeout > 0 {
		secs := uintptr(o.loginTimeout / time.Second)
		if ret := SetConnectAttr(dbc, SQL_ATTR_LOGIN_TIMEOUT, secs, 0); !IsSuccess(ret) {
			o.logger.Warnw("login timeout not applied", "error", NewError(SQL_HANDLE_DBC, SQLHANDLE(dbc)))
		}
	}

	return &Connection{
		env:     env,
		dbc:     dbc,
		opts:    o,
		log:     o.logger,
		metrics: metrics,
	}, nil
}

// UseClientCertificate configures TLS client authentication for the next
// Connect. Calling it on a connected Connection faults.
func (c *Connection) UseClientCertificate(caFile, certFile, keyFile string) {
	if c.connected {
		fault(FaultAlreadyConnected, "client certificate must be set before connecting")
	}
	c.sslCA, c.sslCert, c.sslKey = caFile, certFile, keyFile
}

// Connect opens a session to a MySQL server through the configured ODBC
// driver. Multiple statements per Execute are enabled.
func (c *Connection) Connect(host string, port uint, user, password, database string) error {
	attrs := [][2]string{
		{"DRIVER", c.opts.driver},
		{"SERVER", host},
		{"PORT", strconv.FormatUint(uint64(port), 10)},
		{"UID", user},
		{"PWD", password},
		{"DATABASE", database},
		{"CHARSET", "utf8mb4"},
		{"MULTI_STATEMENTS", "1"},
	}
	if c.sslCA != "" {
		attrs = append(attrs, [2]string{"SSLCA", c.sslCA})
	}
	if c.sslCert != "" {
		attrs = append(attrs, [2]string{"SSLCERT", c.sslCert})
	}
	if c.sslKey != "" {
		attrs = append(attrs, [2]string{"SSLKEY", c.sslKey})
	}

	var sb strings.Builder
	for _, kv := range attrs {
		if kv[1] == "" {
			continue
		}
		sb.WriteString(kv[0])
		sb.WriteByte('=')
		sb.WriteString(quoteConnValue(kv[1]))
		sb.WriteByte(';')
	}

	c.log.Debugw("connecting", "host", host, "port", port, "user", user, "database", database)
	return c.ConnectDSN(sb.String())
}

// ConnectDSN opens a session using a raw ODBC connection string.
func (c *Connection) ConnectDSN(dsn string) error {
	if c.connected {
		fault(FaultAlreadyConnected, "connection is already established")
	}
	if c.dbc == 0 {
		fault(FaultState, "connection is closed")
	}

	_, ret := DriverConnect(c.dbc, 0, dsn, nil, SQL_DRIVER_NOPROMPT)
	if !IsSuccess(ret) {
		return wrapDiag(ErrConnection, SQL_HANDLE_DBC, SQLHANDLE(c.dbc))
	}
	c.connected = true
	c.log.Infow("connected")
	return nil
}

// quoteConnValue braces a connection-string value when it contains
// characters with meaning in the attribute syntax.
func quoteConnValue(v string) string {
	if !strings.ContainsAny(v, ";{}= ") {
		return v
	}
	return "{" + strings.ReplaceAll(v, "}", "}}") + "}"
}

// IsConnected reports whether Connect succeeded and Close has not been called.
func (c *Connection) IsConnected() bool {
	return c.connected
}

// Logger returns the logger the connection was configured with.
func (c *Connection) Logger() Logger {
	return c.log
}

// RawHandle returns the ODBC connection handle.
func (c *Connection) RawHandle() SQLHDBC {
	c.requireConnected()
	return c.dbc
}

func (c *Connection) requireConnected() {
	if !c.connected {
		fault(FaultNotConnected, "connection is not established")
	}
}

// Execute runs one or more semicolon-separated statements directly and
// discards every result they produce.
func (c *Connection) Execute(sql string) error {
	c.requireConnected()

	var stmt SQLHSTMT
	ret := AllocHandle(SQL_HANDLE_STMT, SQLHANDLE(c.dbc), (*SQLHANDLE)(&stmt))
	if !IsSuccess(ret) {
		return wrapDiag(ErrConnection, SQL_HANDLE_DBC, SQLHANDLE(c.dbc))
	}
	defer func() {
		if ret := FreeHandle(SQL_HANDLE_STMT, SQLHANDLE(stmt)); !IsSuccess(ret) {
			c.log.Warnw("free statement handle failed", "return", FormatReturnCode(ret))
		}
	}()

	start := time.Now()
	c.log.Debugw("executing", "sql", sql)

	ret = ExecDirect(stmt, sql)
	if !IsSuccess(ret) && ret != SQL_NO_DATA {
		err := wrapDiag(ErrConnection, SQL_HANDLE_STMT, SQLHANDLE(stmt))
		c.metrics.recordExecution("direct", start, err)
		return err
	}

	// Drain the remaining results so the connection is ready for the next
	// command.
	for {
		ret = MoreResults(stmt)
		if ret == SQL_NO_DATA {
			break
		}
		if !IsSuccess(ret) {
			err := wrapDiag(ErrConnection, SQL_HANDLE_STMT, SQLHANDLE(stmt))
			c.metrics.recordExecution("direct", start, err)
			return err
		}
	}

	c.metrics.recordExecution("direct", start, nil)
	return nil
}

// SetDefaultDatabase switches the database unqualified names resolve to.
func (c *Connection) SetDefaultDatabase(database string) error {
	c.requireConnected()

	ret := SetConnectAttrString(c.dbc, SQL_ATTR_CURRENT_CATALOG, database)
	if !IsSuccess(ret) {
		return wrapDiag(ErrConnection, SQL_HANDLE_DBC, SQLHANDLE(c.dbc))
	}
	c.log.Debugw("default database changed", "database", database)
	return nil
}

// ServerInfo reports the driver name and the DBMS name and version.
func (c *Connection) ServerInfo() (ServerInfo, error) {
	c.requireConnected()

	var info ServerInfo
	for _, item := range []struct {
		infoType SQLUSMALLINT
		dest     *string
	}{
		{SQL_DRIVER_NAME, &info.DriverName},
		{SQL_DBMS_NAME, &info.DBMSName},
		{SQL_DBMS_VER, &info.DBMSVersion},
	} {
		buf := make([]byte, 256)
		n, ret := GetInfo(c.dbc, item.infoType, buf)
		if !IsSuccess(ret) {
			return ServerInfo{}, wrapDiag(ErrConnection, SQL_HANDLE_DBC, SQLHANDLE(c.dbc))
		}
		if int(n) > len(buf)-1 {
			n = SQLSMALLINT(len(buf) - 1)
		}
		*item.dest = string(buf[:n])
	}
	return info, nil
}

// Close disconnects and frees the handles. It is safe to call more than
// once; failures are logged.
func (c *Connection) Close() {
	if c.connected {
		if ret := Disconnect(c.dbc); !IsSuccess(ret) {
			c.log.Warnw("disconnect failed", "error", NewError(SQL_HANDLE_DBC, SQLHANDLE(c.dbc)))
		}
		c.connected = false
	}
	if c.dbc != 0 {
		if ret := FreeHandle(SQL_HANDLE_DBC, SQLHANDLE(c.dbc)); !IsSuccess(ret) {
			c.log.Warnw("free connection handle failed", "return", FormatReturnCode(ret))
		}
		c.dbc = 0
	}
	if c.env != 0 {
		if ret := FreeHandle(SQL_HANDLE_ENV, SQLHANDLE(c.env)); !IsSuccess(ret) {
			c.log.Warnw("free environment handle failed", "return", FormatReturnCode(ret))
		}
		c.env = 0
	}
}
