package transport

import "log/slog"

// transportLogger tags log records with the link variant so multi-link
// setups (payload link plus accepted clients) stay distinguishable.
func transportLogger(link string, attrs ...any) *slog.Logger {
	logger := slog.With("component", "transport", "link", link)
	if len(attrs) == 0 {
		return logger
	}

	return logger.With(attrs...)
}
