package app

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"trade_dash/internal/domain"

	"github.com/shopspring/decimal"
)

// ErrInvalidCommand is returned for input the parser does not understand.
var ErrInvalidCommand = errors.New("invalid command")

// CommandKind identifies an operator command.
type CommandKind string

const (
	CommandOrder CommandKind = "order"
	CommandRisk  CommandKind = "risk"
	CommandHelp  CommandKind = "help"
	CommandQuit  CommandKind = "quit"
)

// Usage lists the accepted commands.
const Usage = `commands:
  order <ASK|BID> <TYPE> <price|-> <qty> [displaySize|limitPrice|bestPrice]
  risk <GLOBAL|TRADER> [traderId] [override] key=value...
      keys: maxOpenPosition maxOrderSize maxOrdersPerMin maxDailyLoss maxDrawdown maxRiskPerOrder
  help
  quit`

// Command is one parsed line of operator input.
type Command struct {
	Kind  CommandKind
	Order *domain.OrderRequest
	Risk  *domain.RiskUpdate
}

// ParseCommand parses one line of operator input.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("%w: empty input", ErrInvalidCommand)
	}

	switch CommandKind(strings.ToLower(fields[0])) {
	case CommandOrder:
		req, err := parseOrder(fields[1:])
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: CommandOrder, Order: &req}, nil
	case CommandRisk:
		update, err := parseRisk(fields[1:])
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: CommandRisk, Risk: &update}, nil
	case CommandHelp:
		return Command{Kind: CommandHelp}, nil
	case CommandQuit, "exit":
		return Command{Kind: CommandQuit}, nil
	}
	return Command{}, fmt.Errorf("%w: unknown command %q", ErrInvalidCommand, fields[0])
}

func parseOrder(args []string) (domain.OrderRequest, error) {
	var req domain.OrderRequest
	if len(args) < 4 {
		return req, fmt.Errorf("%w: order needs side, type, price and quantity", ErrInvalidCommand)
	}

	side, ok := domain.ParseSide(strings.ToUpper(args[0]))
	if !ok {
		return req, fmt.Errorf("%w: side %q", ErrInvalidCommand, args[0])
	}
	typ, ok := domain.ParseOrderType(strings.ToUpper(args[1]))
	if !ok {
		return req, fmt.Errorf("%w: order type %q", ErrInvalidCommand, args[1])
	}
	req.Side = side
	req.Type = typ

	if args[2] != "-" {
		price, err := decimal.NewFromString(args[2])
		if err != nil {
			return req, fmt.Errorf("%w: price %q", ErrInvalidCommand, args[2])
		}
		req.Price = &price
	}

	qty, err := strconv.ParseInt(args[3], 10, 64)
	if err != nil {
		return req, fmt.Errorf("%w: quantity %q", ErrInvalidCommand, args[3])
	}
	req.Quantity = qty

	if len(args) < 5 {
		return req, nil
	}
	extra := args[4]
	switch typ {
	case domain.OrderTypeIceberg:
		n, err := strconv.ParseInt(extra, 10, 64)
		if err != nil {
			return req, fmt.Errorf("%w: display size %q", ErrInvalidCommand, extra)
		}
		req.DisplaySize = &n
	case domain.OrderTypeStopLimit:
		d, err := decimal.NewFromString(extra)
		if err != nil {
			return req, fmt.Errorf("%w: limit price %q", ErrInvalidCommand, extra)
		}
		req.LimitPrice = &d
	case domain.OrderTypeTrailingStop:
		d, err := decimal.NewFromString(extra)
		if err != nil {
			return req, fmt.Errorf("%w: best price %q", ErrInvalidCommand, extra)
		}
		req.BestPrice = &d
	default:
		return req, fmt.Errorf("%w: %s takes no extra argument", ErrInvalidCommand, typ)
	}
	return req, nil
}

func parseRisk(args []string) (domain.RiskUpdate, error) {
	var update domain.RiskUpdate
	if len(args) == 0 {
		return update, fmt.Errorf("%w: risk needs a scope", ErrInvalidCommand)
	}

	scope, ok := domain.ParseRiskScope(strings.ToUpper(args[0]))
	if !ok {
		return update, fmt.Errorf("%w: scope %q", ErrInvalidCommand, args[0])
	}
	update.Scope = scope
	args = args[1:]

	if scope == domain.RiskScopeTrader && len(args) > 0 && !strings.Contains(args[0], "=") && args[0] != "override" {
		update.TraderID = args[0]
		args = args[1:]
	}
	if len(args) > 0 && args[0] == "override" {
		update.Override = true
		args = args[1:]
	}

	for _, kv := range args {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return update, fmt.Errorf("%w: expected key=value, got %q", ErrInvalidCommand, kv)
		}
		if err := setLimit(&update.Limits, key, value); err != nil {
			return update, err
		}
	}
	return update, nil
}

func setLimit(l *domain.PartialRiskLimits, key, value string) error {
	parseInt := func() (*int64, error) {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidCommand, key, value)
		}
		return &n, nil
	}
	parseDecimal := func() (*decimal.Decimal, error) {
		d, err := decimal.NewFromString(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidCommand, key, value)
		}
		return &d, nil
	}

	var err error
	switch key {
	case "maxOpenPosition":
		l.MaxOpenPosition, err = parseInt()
	case "maxOrderSize":
		l.MaxOrderSize, err = parseInt()
	case "maxOrdersPerMin":
		l.MaxOrdersPerMin, err = parseInt()
	case "maxDailyLoss":
		l.MaxDailyLoss, err = parseDecimal()
	case "maxDrawdown":
		l.MaxDrawdown, err = parseDecimal()
	case "maxRiskPerOrder":
		l.MaxRiskPerOrder, err = parseDecimal()
	default:
		return fmt.Errorf("%w: unknown limit %q", ErrInvalidCommand, key)
	}
	return err
}
