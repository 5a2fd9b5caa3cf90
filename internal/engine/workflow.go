package engine

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"portfolioclient/types"
)

var ErrInvalidQuantity = errors.New("invalid number")
var ErrInsufficientShares = errors.New("not enough shares")
var ErrDialogClosed = errors.New("trade dialog is not open")
var ErrInvalidTrade = errors.New("trade needs a buy or sell action and a position")

type WorkflowState string

const (
	WorkflowClosed WorkflowState = "CLOSED"
	WorkflowOpen   WorkflowState = "OPEN"
)

// TradeDraft is a copy of the dialog contents.
type TradeDraft struct {
	Action          types.Side
	Ticker          string
	SharesRequested string
	ErrorMessage    string
}

// TradeWorkflow drives the trade dialog. The bound Position is read at
// validation time, so a position update that lands while the dialog is open
// is taken into account.
type TradeWorkflow struct {
	submitter tradeSubmitter
	view      View

	state              WorkflowState
	action             types.Side
	position           *Position
	sharesInput        string
	errorMessage       string
	suppressValidation bool
}

func NewTradeWorkflow(submitter tradeSubmitter, view View) *TradeWorkflow {
	if view == nil {
		view = NopView{}
	}
	return &TradeWorkflow{
		submitter: submitter,
		view:      view,
		state:     WorkflowClosed,
	}
}

// Open binds the dialog to position. Opening an open dialog rebinds and resets it.
func (w *TradeWorkflow) Open(action types.Side, position *Position) error {
	if !action.Valid() || position == nil {
		return ErrInvalidTrade
	}
	w.action = action
	w.position = position
	w.sharesInput = "0"
	w.errorMessage = ""
	w.suppressValidation = false
	w.state = WorkflowOpen
	w.view.OnTradeDialogOpened(action, position)
	return nil
}

func (w *TradeWorkflow) SetShares(shares int64) {
	w.sharesInput = strconv.FormatInt(shares, 10)
}

// SetSharesInput stores the raw quantity as typed by the user.
func (w *TradeWorkflow) SetSharesInput(input string) {
	w.sharesInput = strings.TrimSpace(input)
}

func (w *TradeWorkflow) SuppressValidation(suppress bool) {
	w.suppressValidation = suppress
}

func (w *TradeWorkflow) State() WorkflowState {
	return w.state
}

func (w *TradeWorkflow) Draft() TradeDraft {
	d := TradeDraft{
		Action:          w.action,
		SharesRequested: w.sharesInput,
		ErrorMessage:    w.errorMessage,
	}
	if w.position != nil {
		d.Ticker = w.position.Ticker()
	}
	return d
}

func (w *TradeWorkflow) Validate() error {
	if w.state != WorkflowOpen {
		return ErrDialogClosed
	}
	shares, err := strconv.ParseInt(w.sharesInput, 10, 64)
	if err != nil || shares < 1 {
		return ErrInvalidQuantity
	}
	if w.action == types.SideSell && shares > w.position.Shares() {
		return ErrInsufficientShares
	}
	return nil
}

func (w *TradeWorkflow) Submit(ctx context.Context) error {
	if w.state != WorkflowOpen {
		return ErrDialogClosed
	}
	if !w.suppressValidation {
		if err := w.Validate(); err != nil {
			w.errorMessage = err.Error()
			return err
		}
	}

	// with validation suppressed an unparsable quantity is sent as zero
	shares, _ := strconv.ParseInt(w.sharesInput, 10, 64)
	req := types.NewTradeRequest(w.action, w.position.Ticker(), shares)
	if err := w.submitter.SubmitTrade(ctx, req); err != nil {
		w.errorMessage = err.Error()
		return err
	}
	w.close()
	return nil
}

func (w *TradeWorkflow) Cancel() {
	w.close()
}

func (w *TradeWorkflow) close() {
	w.state = WorkflowClosed
	w.position = nil
	w.action = ""
	w.sharesInput = ""
	w.errorMessage = ""
	w.suppressValidation = false
}
