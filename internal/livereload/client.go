package livereload

import (
	"bytes"
	"fmt"
)

const clientScript = `<script>
(function () {
  var path = %q;
  var delay = 500;

  function swapStylesheets() {
    var links = document.querySelectorAll('link[rel="stylesheet"]');
    for (var i = 0; i < links.length; i++) {
      var href = links[i].getAttribute("href");
      if (!href) continue;
      href = href.replace(/[?&]_lr=\d+/, "");
      links[i].setAttribute("href", href + (href.indexOf("?") >= 0 ? "&" : "?") + "_lr=" + Date.now());
    }
  }

  function connect() {
    var scheme = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(scheme + location.host + path);
    ws.onopen = function () { delay = 500; };
    ws.onmessage = function (event) {
      var msg;
      try { msg = JSON.parse(event.data); } catch (e) { return; }
      if (msg.type === "css") {
        swapStylesheets();
      } else if (msg.type === "reload") {
        location.reload();
      } else if (msg.type === "error") {
        console.error("[sitepipe] " + (msg.task ? msg.task + ": " : "") + msg.message);
      }
    };
    ws.onclose = function () {
      setTimeout(connect, delay);
      delay = Math.min(delay * 2, 5000);
    };
  }

  connect();
})();
</script>
`

// Script returns the browser client connecting to the hub at path.
func Script(path string) string {
	return fmt.Sprintf(clientScript, path)
}

var bodyClose = []byte("</body>")

// Inject inserts the client script before the last </body>, or appends it
// when the document has none.
func Inject(html []byte, path string) []byte {
	script := Script(path)
	idx := bytes.LastIndex(bytes.ToLower(html), bodyClose)
	if idx < 0 {
		out := make([]byte, 0, len(html)+len(script))
		out = append(out, html...)
		return append(out, script...)
	}

	out := make([]byte, 0, len(html)+len(script))
	out = append(out, html[:idx]...)
	out = append(out, script...)
	return append(out, html[idx:]...)
}
