package filters

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/premarket/internal/domain"
)

// Screen evaluates user-supplied CEL expressions against coerced rows.
// Expressions are compiled once; evaluation never errors out of the
// pipeline — a rule that errors simply fails the row.
type Screen struct {
	rules []compiledRule
}

type compiledRule struct {
	id      string
	program cel.Program
}

// NewScreen compiles the enabled custom rules. Each expression sees the
// row fields as variables and must return a bool. Absent numeric fields
// are presented as 0.0, so rule authors can treat zero as missing.
func NewScreen(rules []domain.CustomRule) (*Screen, error) {
	env, err := cel.NewEnv(
		cel.Variable("ticker", cel.StringType),
		cel.Variable("sector", cel.StringType),
		cel.Variable("industry", cel.StringType),
		cel.Variable("exchange", cel.StringType),
		cel.Variable("country", cel.StringType),
		cel.Variable("price", cel.DoubleType),
		cel.Variable("previous_close", cel.DoubleType),
		cel.Variable("change_pct", cel.DoubleType),
		cel.Variable("gap_pct", cel.DoubleType),
		cel.Variable("rel_volume", cel.DoubleType),
		cel.Variable("volume", cel.DoubleType),
		cel.Variable("avg_volume_3m", cel.DoubleType),
		cel.Variable("float_shares", cel.DoubleType),
		cel.Variable("short_float_pct", cel.DoubleType),
		cel.Variable("after_hours_change_pct", cel.DoubleType),
		cel.Variable("week52_pos", cel.DoubleType),
		cel.Variable("market_cap", cel.DoubleType),
		cel.Variable("pe", cel.DoubleType),
		cel.Variable("turnover_dollar", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("create screen environment: %w", err)
	}

	s := &Screen{}
	for _, r := range rules {
		if !r.Enabled {
			continue
		}

		ast, issues := env.Compile(r.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("compile screen rule %s: %w", r.ID, issues.Err())
		}
		if ast.OutputType() != cel.BoolType {
			return nil, fmt.Errorf("screen rule %s: expression must return bool, got %s", r.ID, ast.OutputType())
		}

		program, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("program screen rule %s: %w", r.ID, err)
		}
		s.rules = append(s.rules, compiledRule{id: r.ID, program: program})
	}

	return s, nil
}

// Len returns the number of compiled rules.
func (s *Screen) Len() int { return len(s.rules) }

// Reasons evaluates every compiled rule against a row and returns the
// rejection reasons for rules that returned false or errored, in
// rule-declaration order.
func (s *Screen) Reasons(row *domain.Row) []string {
	if len(s.rules) == 0 {
		return nil
	}

	activation := rowActivation(row)

	var out []string
	for _, rule := range s.rules {
		val, _, err := rule.program.Eval(activation)
		if err != nil {
			out = append(out, CustomReason(rule.id))
			continue
		}
		if b, ok := val.(types.Bool); !ok || !bool(b) {
			out = append(out, CustomReason(rule.id))
		}
	}
	return out
}

func rowActivation(row *domain.Row) map[string]any {
	return map[string]any{
		"ticker":                 row.Ticker,
		"sector":                 row.Sector,
		"industry":               row.Industry,
		"exchange":               row.Exchange,
		"country":                row.Country,
		"price":                  orZero(row.Price),
		"previous_close":         orZero(row.PreviousClose),
		"change_pct":             orZero(row.ChangePct),
		"gap_pct":                orZero(row.GapPct),
		"rel_volume":             orZero(row.RelVolume),
		"volume":                 intOrZero(row.Volume),
		"avg_volume_3m":          intOrZero(row.AvgVolume3M),
		"float_shares":           intOrZero(row.FloatShares),
		"short_float_pct":        orZero(row.ShortFloatPct),
		"after_hours_change_pct": orZero(row.AfterHoursChangePct),
		"week52_pos":             orZero(row.Week52Pos),
		"market_cap":             orZero(row.MarketCap),
		"pe":                     orZero(row.PE),
		"turnover_dollar":        orZero(row.TurnoverDollar),
	}
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func intOrZero(v *int64) float64 {
	if v == nil {
		return 0
	}
	return float64(*v)
}
