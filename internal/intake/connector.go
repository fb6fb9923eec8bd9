package intake

import (
	"context"
	"fmt"
	"strings"

	"bimschedule/internal/config"
	gmailconnector "bimschedule/internal/intake/gmail"
	imapconnector "bimschedule/internal/intake/imap"
)

func NewConnector(ctx context.Context, cfg config.Config, provider string) (MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(ctx, cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported mail provider: %s", provider)
	}
}
