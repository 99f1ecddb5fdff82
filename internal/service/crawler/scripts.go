package crawler

import (
	"encoding/json"
	"fmt"
)

// Scripts are function expressions handed to chrome.Page.Evaluate. Each one
// returns a JSON-serialisable value.
const (
	snapshotScript = `() => ({
		url: location.href,
		title: document.title,
		html: document.documentElement.outerHTML,
		text: document.body ? document.body.innerText : ""
	})`

	viewportScript = `() => ({width: window.innerWidth, height: window.innerHeight})`

	scrollMetricsScript = `() => ({
		scrollY: window.scrollY,
		innerHeight: window.innerHeight,
		scrollHeight: Math.max(document.body ? document.body.scrollHeight : 0, document.documentElement.scrollHeight)
	})`
)

func scrollByScript(dy int) string {
	return fmt.Sprintf(`() => { window.scrollBy(0, %d); return window.scrollY; }`, dy)
}

func countScript(selector string) string {
	return fmt.Sprintf(`() => document.querySelectorAll(%s).length`, jsString(selector))
}

// clickNthScript clicks the i-th match and reports whether it existed.
func clickNthScript(selector string, i int) string {
	return fmt.Sprintf(`() => {
		const el = document.querySelectorAll(%s)[%d];
		if (!el) return false;
		el.scrollIntoView({block: "center"});
		el.click();
		return true;
	}`, jsString(selector), i)
}

func labelNthScript(selector string, i int) string {
	return fmt.Sprintf(`() => {
		const el = document.querySelectorAll(%s)[%d];
		if (!el) return "";
		return (el.getAttribute("aria-label") || el.getAttribute("title") ||
			el.getAttribute("data-value") || el.innerText || el.value || "").trim();
	}`, jsString(selector), i)
}

// expandScript clicks every match of every selector and returns the count.
func expandScript(selectors []string) string {
	return fmt.Sprintf(`() => {
		let clicked = 0;
		for (const sel of %s) {
			for (const el of document.querySelectorAll(sel)) {
				try { el.click(); clicked++; } catch (e) {}
			}
		}
		return clicked;
	}`, jsValue(selectors))
}

// loadingVisibleScript reports whether any matching element is rendered.
func loadingVisibleScript(selectors []string) string {
	return fmt.Sprintf(`() => %s.some(sel => Array.from(document.querySelectorAll(sel)).some(el => {
		const style = getComputedStyle(el);
		const rect = el.getBoundingClientRect();
		return style.display !== "none" && style.visibility !== "hidden" && rect.width > 0 && rect.height > 0;
	}))`, jsValue(selectors))
}

func jsString(s string) string {
	return jsValue(s)
}

func jsValue(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}
