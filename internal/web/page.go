package web

import (
	"fmt"
	"html/template"
	"net/http"

	"cryptodigest/internal/digest"
	"cryptodigest/internal/market"
	"cryptodigest/internal/subscriber"
	"cryptodigest/pkg/coingecko"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Cryptocurrency Price Tracker</title>
<style>
body { font-family: sans-serif; max-width: 760px; margin: 2em auto; }
.banner { padding: .6em 1em; margin: .5em 0; border-radius: 4px; }
.success { background: #e6f4ea; } .info { background: #e8f0fe; }
.warning { background: #fef7e0; } .error { background: #fce8e6; }
.metric { display: inline-block; width: 45%; }
.up { color: #188038; } .down { color: #d93025; }
</style>
</head>
<body>
<h1>Cryptocurrency Price Tracker</h1>
{{range .Banners}}<div class="banner {{.Level}}">{{.Message}}</div>
{{end}}
<h2>Current Prices</h2>
{{if .Prices}}{{range .Prices}}<div class="metric">
<h3>{{.Name}} ({{.Ticker}})</h3>
<p id="{{.ID}}-price">{{.Price}}</p>
<p id="{{.ID}}-change" class="{{if .Down}}down{{else}}up{{end}}">{{.Change}}</p>
</div>
{{end}}<p>Last updated: {{.UpdatedAt}}</p>
{{else}}<p>Price data unavailable.</p>
{{end}}
<h2>Subscribe to Daily Updates</h2>
<form method="post" action="/subscribe">
<input type="text" name="email" placeholder="Enter your email address">
<button type="submit">Subscribe</button>
</form>
<p>Digest is sent daily at {{.ScheduleAt}}.</p>
<h2>Current Subscribers</h2>
{{if .Subscribers}}<ul>
{{range .Subscribers}}<li>{{.}}</li>
{{end}}</ul>
{{else}}<p>No subscribers yet.</p>
{{end}}
<form method="post" action="/send">
<button type="submit">Send Test Email</button>
</form>
<script>
(function () {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + "/ws/prices");
  ws.onmessage = function (ev) {
    var msg = JSON.parse(ev.data);
    (msg.assets || []).forEach(function (a) {
      var p = document.getElementById(a.id + "-price");
      var c = document.getElementById(a.id + "-change");
      if (p) { p.textContent = a.price; }
      if (c) { c.textContent = a.change; c.className = a.down ? "down" : "up"; }
    });
  };
})();
</script>
</body>
</html>
`))

type banner struct {
	Level   string
	Message string
}

type priceView struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Ticker string `json:"ticker"`
	Price  string `json:"price"`
	Change string `json:"change"`
	Down   bool   `json:"down"`
}

type pageView struct {
	Banners     []banner
	Prices      []priceView
	UpdatedAt   string
	ScheduleAt  string
	Subscribers []string
}

// priceViews formats a snapshot in display order. Missing assets are skipped.
func priceViews(snapshot market.Snapshot) []priceView {
	views := make([]priceView, 0, len(market.Assets))
	for _, a := range market.Assets {
		q, ok := snapshot[a]
		if !ok {
			continue
		}
		views = append(views, priceView{
			ID:     string(a),
			Name:   a.Name(),
			Ticker: a.Ticker(),
			Price:  digest.FormatUSD(q.Price),
			Change: digest.FormatPercent(q.Change24h),
			Down:   q.Change24h.IsNegative(),
		})
	}
	return views
}

func noticeBanners(notices []coingecko.Notice) []banner {
	out := make([]banner, 0, len(notices))
	for _, n := range notices {
		out = append(out, banner{Level: string(n.Level), Message: n.Message})
	}
	return out
}

// renderPage writes the full page. Banners passed in come first.
func (s *Server) renderPage(c *gin.Context, status int, banners ...banner) {
	ctx := c.Request.Context()
	view := pageView{ScheduleAt: s.scheduleAt}

	latest, notices, err := s.currentPrices(ctx)
	view.Banners = append(banners, noticeBanners(notices)...)
	if err != nil {
		s.logger.Warn("prices unavailable for page", zap.Error(err))
		if len(notices) == 0 {
			view.Banners = append(view.Banners, banner{Level: "error", Message: "Error fetching data: " + err.Error()})
		}
	} else {
		view.Prices = priceViews(latest.Snapshot)
		view.UpdatedAt = latest.FetchedAt.Format("2006-01-02 15:04:05")
	}

	subscribers, err := s.subscribers.List(ctx)
	if err != nil {
		s.logger.Error("failed to list subscribers", zap.Error(err))
		view.Banners = append(view.Banners, banner{Level: "error", Message: "Could not load subscribers."})
	}
	view.Subscribers = subscribers

	c.HTML(status, "page", view)
}

func (s *Server) index(c *gin.Context) {
	s.renderPage(c, http.StatusOK)
}

func (s *Server) subscribeForm(c *gin.Context) {
	outcome, err := s.subscribers.Subscribe(c.Request.Context(), c.PostForm("email"))
	if err != nil {
		s.logger.Error("subscribe failed", zap.Error(err))
		s.renderPage(c, http.StatusInternalServerError, banner{Level: "error", Message: "Could not save your subscription. Please try again."})
		return
	}

	switch outcome {
	case subscriber.InvalidEmail:
		s.renderPage(c, http.StatusBadRequest, banner{Level: "error", Message: "Please enter a valid email address."})
	case subscriber.AlreadySubscribed:
		s.renderPage(c, http.StatusOK, banner{Level: "info", Message: "You are already subscribed!"})
	default:
		s.renderPage(c, http.StatusOK, banner{Level: "success", Message: "Successfully subscribed to daily cryptocurrency updates!"})
	}
}

func (s *Server) sendForm(c *gin.Context) {
	report, err := s.dispatcher.RunOnce(c.Request.Context())
	switch {
	case err != nil:
		s.renderPage(c, http.StatusBadGateway, banner{Level: "error", Message: "Failed to send digest: " + err.Error()})
	case report.Skipped != "":
		s.renderPage(c, http.StatusOK, banner{Level: "info", Message: "No subscribers to send emails to."})
	case report.Failed() > 0:
		s.renderPage(c, http.StatusOK, banner{Level: "warning",
			Message: fmt.Sprintf("Digest sent: %d delivered, %d failed.", report.Sent(), report.Failed())})
	default:
		s.renderPage(c, http.StatusOK, banner{Level: "success",
			Message: fmt.Sprintf("Digest sent: %d delivered, %d failed.", report.Sent(), report.Failed())})
	}
}
