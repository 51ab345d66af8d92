// Package notify delivers lead submissions (a visitor asking about a plot)
// to one or more sinks: the application log, an append-only request file,
// and e-mail.
//
// Delivery is best effort. Callers record the lead first and treat a sink
// failure as something to log, not as a failed submission.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/parcelgrid/pkg/errors"
	"github.com/matzehuels/parcelgrid/pkg/observability"
)

// Placeholders for fields a visitor left empty.
const (
	DefaultName = "Не указано"
	DefaultPlot = "Не выбран"
	DefaultType = "Заявка"
)

// Lead is a contact request received from the site.
type Lead struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	PlotID     string    `json:"plotId"`
	Type       string    `json:"type"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// NewLead assigns an id and a receive time and fills empty optional fields
// with placeholders. The phone number is required and validated.
func NewLead(name, phone, plotID, kind string) (Lead, error) {
	l := Lead{
		ID:         uuid.NewString(),
		Name:       strings.TrimSpace(name),
		Phone:      strings.TrimSpace(phone),
		PlotID:     strings.TrimSpace(plotID),
		Type:       strings.TrimSpace(kind),
		ReceivedAt: time.Now().UTC(),
	}
	if l.Name == "" {
		l.Name = DefaultName
	} else if err := errors.ValidateContactName(l.Name); err != nil {
		return Lead{}, err
	}
	if err := errors.ValidatePhone(l.Phone); err != nil {
		return Lead{}, err
	}
	if l.PlotID == "" {
		l.PlotID = DefaultPlot
	}
	if l.Type == "" {
		l.Type = DefaultType
	}
	return l, nil
}

// String renders the lead on one line.
func (l Lead) String() string {
	return fmt.Sprintf("%s %s: %s, %s, plot %s", l.ReceivedAt.Format(time.RFC3339), l.Type, l.Name, l.Phone, l.PlotID)
}

// Notifier is a lead sink.
type Notifier interface {
	// Name identifies the sink in logs and metrics.
	Name() string

	// Notify delivers one lead.
	Notify(ctx context.Context, lead Lead) error
}

// Deliver sends lead to n and reports the attempt to the notification
// hooks. Failures are returned with code NOTIFY_FAILED.
func Deliver(ctx context.Context, n Notifier, lead Lead) error {
	start := time.Now()
	err := n.Notify(ctx, lead)
	observability.Notify().OnNotify(ctx, n.Name(), time.Since(start), err)
	if err != nil && errors.GetCode(err) == "" {
		err = errors.Wrap(errors.ErrCodeNotifyFailed, err, "%s", n.Name())
	}
	return err
}
