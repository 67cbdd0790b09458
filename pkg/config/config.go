package config

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	Addr              string   // listen addr for the web server
	Store             string   // record store type (xlsx, sqlite, gsheet, postgres, memory)
	XlsxFile          string   // path of the spreadsheet file
	XlsxSheet         string   // sheet name within the spreadsheet file
	SqliteFile        string   // path of the sqlite database file
	GsheetID          string   // id of the google spreadsheet
	GsheetTab         string   // tab within the google spreadsheet
	GsheetCredentials string   // path to the service account credentials file
	DB                string   // connection string for the database
	Migrate           bool     // apply database migrations on start
	WaitForServices   string   // duration to wait for other services to be ready
	SaveMode          string   // upsert or append
	LogLevel          string   // sets the log level (zap log level values)
	LogFormat         string   // text vs json
	LogFilter         string   // zapfilter rules
	CSRFKey           string   // 32 byte key (hex or plain) for csrf tokens
	APIOrigins        []string // browser origins besides the serving host allowed on the JSON API
	EnableTelemetry   bool     // enable telemetry
	TelemetryEndpoint string   // endpoint for telemetry, "stdout" prints spans and metrics
	TLSCertFile       string   // path to TLS certificate
	TLSKeyFile        string   // path to TLS key
	TraefikCerts      string   // path to traefik certs file
	TraefikCertDomain string   // the domain to lookup within the traefik certs
)
