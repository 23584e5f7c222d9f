package static

import (
	"fmt"

	"github.com/yourusername/relay/pkg/relay/http11"
)

// defaultLandingPage is served for the site root when no index file is
// configured.
const defaultLandingPage = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>relay</title></head>
<body>
  <h1>It works</h1>
  <p>This host is served by relay. Configure a default page to replace this placeholder.</p>
</body>
</html>
`

// errorPageTemplate renders the built-in error page when the host has no
// custom page for the status.
const errorPageTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>%d %s</title></head>
<body>
  <h1>%d %s</h1>
  <p>%s</p>
</body>
</html>
`

// DefaultErrorPage renders the built-in HTML error page for a status and
// message.
func DefaultErrorPage(status http11.StatusCode, message string) []byte {
	return []byte(fmt.Sprintf(errorPageTemplate,
		int(status), status.Reason(), int(status), status.Reason(), message))
}

// listingTemplate is the prebuilt directory-listing page. It reads the
// JSON data file regenerated next to it on every listing request.
const listingTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Index</title></head>
<body>
  <h1>Directory listing</h1>
  <ul id="entries"></ul>
  <script>
    fetch("/` + ListingDataFile + `")
      .then(function (r) { return r.json(); })
      .then(function (entries) {
        var ul = document.getElementById("entries");
        entries.forEach(function (e) {
          var li = document.createElement("li");
          var a = document.createElement("a");
          a.href = "/" + e.path;
          a.textContent = e.name + (e.type === "directory" ? "/" : " (" + e.size + " bytes)");
          li.appendChild(a);
          ul.appendChild(li);
        });
      });
  </script>
</body>
</html>
`
