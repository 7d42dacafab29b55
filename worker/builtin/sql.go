package builtin

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/scusemua/notebook-runtime/common/interpreter"
)

const (
	DefaultPrefix = "default"

	sqliteDriver = "sqlite"

	maxCountKey         = "common.max_count"
	concurrentUseKey    = "common.concurrent.use"
	concurrentMaxKey    = "common.concurrent.max_connection"
	defaultMaxCount     = 1000
	defaultMaxConnCount = 10

	urlSuffix             = ".url"
	userSuffix            = ".user"
	passwordSuffix        = ".password"
	precodeSuffix         = ".precode"
	statementPrecodeSuffx = ".statementPrecode"
	splitQueriesSuffix    = ".splitQueries"
)

var (
	ErrImproperURL = errors.New("Connection URL contains improper configuration")
	ErrNoURL       = errors.New("no url is configured")

	// Connection parameters that let a server read local files or deserialize arbitrary objects.
	improperURLParams = []string{
		"allowloadlocalinfile=true",
		"allowurlinlocalinfile=true",
		"allowloadlocalinfileinpath",
		"autodeserialize=true",
	}

	sqlKeywords = []string{
		"alter", "and", "as", "asc", "begin", "between", "by", "case", "commit", "create", "delete", "desc",
		"distinct", "drop", "else", "end", "exists", "explain", "from", "group", "having", "in", "index",
		"inner", "insert", "into", "is", "join", "left", "like", "limit", "not", "null", "offset", "on", "or",
		"order", "pragma", "rollback", "select", "set", "table", "then", "union", "update", "values", "view",
		"when", "where", "with",
	}
)

// ConnectionConfig is the resolved configuration of the connection of one user to one database prefix.
type ConnectionConfig struct {
	Prefix   string `json:"prefix"`
	URL      string `json:"url"`
	User     string `json:"user"`
	Password string `json:"password"`
}

type prefixConfig struct {
	url              string
	user             string
	password         string
	precode          string
	statementPrecode string
	splitQueries     bool
}

// SQLInterpreter runs SQL against SQLite databases. Databases are configured per prefix with the
// "<prefix>.url", "<prefix>.user" and "<prefix>.password" properties; a paragraph picks a prefix with the
// "db" local property (or a bare "<prefix>" local property) and uses the "default" prefix otherwise.
//
// When the configured user of a prefix is empty, the credentials of the principal running the paragraph
// are used, looked up in its user credentials under the repl name and then under the prefix. Every user
// gets its own connections.
type SQLInterpreter struct {
	log logger.Logger

	prefixes       map[string]*prefixConfig
	maxCount       int
	maxConcurrency int

	mu          sync.Mutex
	connections map[string]*sql.DB
	configs     map[string]ConnectionConfig
	running     map[string]context.CancelFunc
}

func NewSQLInterpreter(props interpreter.Properties) (interpreter.Interpreter, error) {
	s := &SQLInterpreter{
		prefixes:       make(map[string]*prefixConfig),
		maxCount:       props.GetInt(maxCountKey, defaultMaxCount),
		maxConcurrency: 1,
		connections:    make(map[string]*sql.DB),
		configs:        make(map[string]ConnectionConfig),
		running:        make(map[string]context.CancelFunc),
	}
	config.InitLogger(&s.log, s)

	if strings.EqualFold(props.Get(concurrentUseKey, "false"), "true") {
		s.maxConcurrency = props.GetInt(concurrentMaxKey, defaultMaxConnCount)
	}

	for key, value := range props {
		if !strings.HasSuffix(key, urlSuffix) {
			continue
		}
		prefix := strings.TrimSuffix(key, urlSuffix)
		s.prefixes[prefix] = &prefixConfig{
			url:              value,
			user:             props.Get(prefix+userSuffix, ""),
			password:         props.Get(prefix+passwordSuffix, ""),
			precode:          props.Get(prefix+precodeSuffix, ""),
			statementPrecode: props.Get(prefix+statementPrecodeSuffx, ""),
			splitQueries:     strings.EqualFold(props.Get(prefix+splitQueriesSuffix, "false"), "true"),
		}
	}

	if _, ok := s.prefixes[DefaultPrefix]; !ok {
		return nil, fmt.Errorf("%w for prefix \"%s\"", ErrNoURL, DefaultPrefix)
	}
	return s, nil
}

// MaxConcurrency is the number of paragraphs the interpreter may run at once.
func (s *SQLInterpreter) MaxConcurrency() int {
	return s.maxConcurrency
}

func (s *SQLInterpreter) Open(_ context.Context) error {
	return nil
}

func (s *SQLInterpreter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for key, db := range s.connections {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.connections, key)
	}
	for _, cancel := range s.running {
		cancel()
	}
	return firstErr
}

// DBPrefix returns the database prefix requested by the local properties of a paragraph.
func (s *SQLInterpreter) DBPrefix(ictx *interpreter.Context) string {
	if db, ok := ictx.LocalProperty("db"); ok && db != "" {
		return db
	}

	keys := make([]string, 0, len(ictx.LocalProperties))
	for k := range ictx.LocalProperties {
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return DefaultPrefix
	}
	sort.Strings(keys)
	return keys[0]
}

// JDBCConfiguration returns the configuration last resolved for the given user and prefix.
func (s *SQLInterpreter) JDBCConfiguration(user string, prefix string) (ConnectionConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.configs[connectionKey(user, prefix)]
	return cfg, ok
}

// resolve returns the connection configuration of the principal of ictx. Unknown prefixes fall back to
// the default prefix.
func (s *SQLInterpreter) resolve(ictx *interpreter.Context) (ConnectionConfig, *prefixConfig) {
	prefix := s.DBPrefix(ictx)
	pc, ok := s.prefixes[prefix]
	if !ok {
		prefix = DefaultPrefix
		pc = s.prefixes[DefaultPrefix]
	}

	cfg := ConnectionConfig{Prefix: prefix, URL: pc.url, User: pc.user, Password: pc.password}
	if cfg.User == "" && ictx.AuthenticationInfo != nil {
		for _, entity := range []string{ictx.ReplName, prefix} {
			if up, found := ictx.AuthenticationInfo.UserCredentials.Get(entity); found && entity != "" {
				cfg.User = up.Username
				cfg.Password = up.Password
				break
			}
		}
	}

	s.mu.Lock()
	s.configs[connectionKey(ictx.User(), prefix)] = cfg
	s.mu.Unlock()

	return cfg, pc
}

func connectionKey(user string, prefix string) string {
	return user + "\x00" + prefix
}

func validateURL(url string) error {
	lower := strings.ToLower(url)
	for _, param := range improperURLParams {
		if strings.Contains(lower, param) {
			return ErrImproperURL
		}
	}
	return nil
}

// dataSource converts a configured url into a data source name of the sqlite driver.
func dataSource(url string) string {
	url = strings.TrimPrefix(url, "jdbc:")
	return strings.TrimPrefix(url, "sqlite:")
}

// connection returns the database of the given user, opening it and running the precode on first use.
// The output of the precode is returned along with a newly opened database.
func (s *SQLInterpreter) connection(ctx context.Context, user string, cfg ConnectionConfig, pc *prefixConfig) (*sql.DB, []interpreter.Message, error) {
	key := connectionKey(user, cfg.Prefix)

	s.mu.Lock()
	defer s.mu.Unlock()

	if db, ok := s.connections[key]; ok {
		return db, nil, nil
	}

	dsn := dataSource(cfg.URL)
	db, err := sql.Open(sqliteDriver, dsn)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open %s for user %s", cfg.Prefix, user)
	}

	// Each connection to an in-memory database sees its own database.
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(s.maxConcurrency)
	}

	var messages []interpreter.Message
	if pc.precode != "" {
		result := s.execute(ctx, db, nil, pc.precode, true)
		if !result.Succeeded() {
			_ = db.Close()
			return nil, result.Messages, fmt.Errorf("precode of %s failed", cfg.Prefix)
		}
		messages = result.Messages
	}

	s.log.Debug("Opened %s (%s) for user %s.", cfg.Prefix, dsn, user)
	s.connections[key] = db
	return db, messages, nil
}

func (s *SQLInterpreter) Interpret(ctx context.Context, st string, ictx *interpreter.Context) (*interpreter.Result, error) {
	cfg, pc := s.resolve(ictx)
	if err := validateURL(cfg.URL); err != nil {
		return interpreter.NewResult(interpreter.CodeError).Add(interpreter.TypeText, err.Error()), nil
	}

	if strings.TrimSpace(st) == "" {
		return interpreter.NewResult(interpreter.CodeSuccess), nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.running[ictx.ParagraphId] = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.running, ictx.ParagraphId)
		s.mu.Unlock()
	}()

	db, precodeOutput, err := s.connection(runCtx, ictx.User(), cfg, pc)
	if err != nil {
		result := interpreter.NewResult(interpreter.CodeError)
		result.Messages = append(result.Messages, precodeOutput...)
		return result.Add(interpreter.TypeText, err.Error()), nil
	}

	conn, err := db.Conn(runCtx)
	if err != nil {
		return interpreter.ErrorResult("%v", err), nil
	}
	defer conn.Close()

	if pc.statementPrecode != "" {
		if _, err = conn.ExecContext(runCtx, pc.statementPrecode); err != nil {
			return interpreter.ErrorResult("%v", err), nil
		}
	}

	result := s.execute(runCtx, nil, conn, st, pc.splitQueries)
	result.Messages = append(precodeOutput, result.Messages...)
	if runCtx.Err() != nil && ctx.Err() == nil {
		result.Code = interpreter.CodeAbort
	}
	return result, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// execute runs every statement of st on either db or conn and collects their output.
func (s *SQLInterpreter) execute(ctx context.Context, db *sql.DB, conn *sql.Conn, st string, split bool) *interpreter.Result {
	var q queryer = db
	if conn != nil {
		q = conn
	}

	statements := []string{strings.TrimSpace(st)}
	if split {
		statements = SplitStatements(st)
	}

	result := interpreter.NewResult(interpreter.CodeSuccess)
	for _, statement := range statements {
		if statement == "" {
			continue
		}

		if isQuery(statement) {
			if err := s.query(ctx, q, statement, result); err != nil {
				result.Code = interpreter.CodeError
				return result.Add(interpreter.TypeText, err.Error())
			}
			continue
		}

		res, err := q.ExecContext(ctx, statement)
		if err != nil {
			result.Code = interpreter.CodeError
			return result.Add(interpreter.TypeText, err.Error())
		}
		affected, _ := res.RowsAffected()
		result.Add(interpreter.TypeText, fmt.Sprintf("Query executed successfully. Affected rows : %d\n", affected))
	}
	return result
}

// query runs a statement that returns rows and appends them to result as a TABLE, truncated to maxCount rows.
func (s *SQLInterpreter) query(ctx context.Context, q queryer, statement string, result *interpreter.Result) error {
	rows, err := q.QueryContext(ctx, statement)
	if err != nil {
		return err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString(strings.Join(columns, "\t"))
	b.WriteString("\n")

	values := make([]interface{}, len(columns))
	pointers := make([]interface{}, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}

	count := 0
	truncated := false
	for rows.Next() {
		if count >= s.maxCount {
			truncated = true
			break
		}
		if err = rows.Scan(pointers...); err != nil {
			return err
		}

		for i, v := range values {
			if i > 0 {
				b.WriteString("\t")
			}
			b.WriteString(formatCell(v))
		}
		b.WriteString("\n")
		count++
	}
	if err = rows.Err(); err != nil {
		return err
	}

	result.Add(interpreter.TypeTable, b.String())
	if truncated {
		result.Add(interpreter.TypeHtml, fmt.Sprintf(
			"<font color=red>Output is truncated to %d rows. Learn more about <strong>%s</strong></font>", s.maxCount, maxCountKey))
	}
	return nil
}

func formatCell(v interface{}) string {
	switch value := v.(type) {
	case nil:
		return "null"
	case []byte:
		return string(value)
	default:
		return strings.NewReplacer("\t", " ", "\n", " ").Replace(fmt.Sprintf("%v", value))
	}
}

// isQuery returns true if the statement returns rows.
func isQuery(statement string) bool {
	fields := strings.Fields(strings.ToLower(statement))
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "select", "with", "pragma", "explain", "values":
		return true
	default:
		return false
	}
}

// SplitStatements splits st on the semicolons that are outside of quotes and comments. Comments are
// dropped and empty statements are skipped.
func SplitStatements(st string) []string {
	statements := make([]string, 0)

	var (
		current      strings.Builder
		quote        rune
		lineComment  bool
		blockComment bool
	)

	runes := []rune(st)
	flush := func() {
		if statement := strings.TrimSpace(current.String()); statement != "" {
			statements = append(statements, statement)
		}
		current.Reset()
	}

	for i := 0; i < len(runes); i++ {
		c := runes[i]
		var next rune
		if i+1 < len(runes) {
			next = runes[i+1]
		}

		switch {
		case lineComment:
			if c == '\n' {
				lineComment = false
				current.WriteRune(c)
			}
		case blockComment:
			if c == '*' && next == '/' {
				blockComment = false
				i++
			}
		case quote != 0:
			current.WriteRune(c)
			if c == quote {
				// A doubled quote is an escaped quote.
				if next == quote {
					current.WriteRune(next)
					i++
				} else {
					quote = 0
				}
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
			current.WriteRune(c)
		case c == '-' && next == '-':
			lineComment = true
			i++
		case c == '/' && next == '*':
			blockComment = true
			i++
		case c == ';':
			flush()
		default:
			current.WriteRune(c)
		}
	}
	flush()

	return statements
}

func (s *SQLInterpreter) Cancel(ictx *interpreter.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancel, ok := s.running[ictx.ParagraphId]; ok {
		cancel()
	}
	return nil
}

func (s *SQLInterpreter) FormType() interpreter.FormType {
	return interpreter.FormTypeSimple
}

func (s *SQLInterpreter) Progress(_ *interpreter.Context) int {
	return 0
}

// Completion completes the SQL keyword under the cursor.
func (s *SQLInterpreter) Completion(buf string, cursor int, _ *interpreter.Context) ([]interpreter.Completion, error) {
	if cursor < 0 || cursor > len(buf) {
		cursor = len(buf)
	}

	start := cursor
	for start > 0 && isWordByte(buf[start-1]) {
		start--
	}
	word := strings.ToLower(buf[start:cursor])
	if word == "" {
		return nil, nil
	}

	completions := make([]interpreter.Completion, 0)
	for _, keyword := range sqlKeywords {
		if strings.HasPrefix(keyword, word) {
			completions = append(completions, interpreter.Completion{Name: keyword, Value: keyword, Meta: "keyword"})
		}
	}
	return completions, nil
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
