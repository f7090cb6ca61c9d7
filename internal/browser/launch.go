// Package browser provides browser process launching and anti-detection setup
// for scrape workers.
package browser

import (
	"context"
	"fmt"
	"runtime"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/rs/zerolog/log"
)

// Options configures how a browser process is launched.
type Options struct {
	// ControlURL, if set, connects to an already-running browser instead of
	// launching a new one. Mirrors the --driver flag pointing at a remote
	// CDP endpoint.
	ControlURL string

	// BinPath overrides the Chrome/Chromium executable to launch.
	BinPath string

	// Headless controls whether Chrome runs with --headless=new or with a
	// real window (useful under Xvfb).
	Headless bool

	IgnoreCertErrors bool
}

// Launch starts (or connects to) a browser according to opts and returns a
// connected *rod.Browser. The caller owns the returned browser and must call
// Close on it.
func Launch(ctx context.Context, opts Options) (*rod.Browser, error) {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}

	if opts.ControlURL != "" {
		b := rod.New().ControlURL(opts.ControlURL).Context(ctx)
		if err := b.Connect(); err != nil {
			return nil, fmt.Errorf("connect to browser at %s: %w", opts.ControlURL, err)
		}
		return b, nil
	}

	l := createLauncher(opts)
	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(url).Context(ctx)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect to launched browser: %w", err)
	}
	return b, nil
}

// createLauncher builds a launcher configured with the flags needed to make
// a CDP-driven Chrome look like an ordinary desktop browser: WebGL via
// SwiftShader, WebRTC leak prevention, no "AutomationControlled" blink
// feature, a fixed 1920x1080 window.
func createLauncher(opts Options) *launcher.Launcher {
	l := launcher.New()

	if opts.BinPath != "" {
		l = l.Bin(opts.BinPath)
	}

	if opts.Headless {
		l = l.Set("headless", "new")
	} else {
		l = l.Headless(false)
	}

	l = l.Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-dev-shm-usage")

	// Prevent WebRTC from leaking the server's real public IP via ICE
	// candidates.
	l = l.Set("force-webrtc-ip-handling-policy", "disable_non_proxied_udp")

	l = l.Set("disable-blink-features", "AutomationControlled")
	l = l.Delete("enable-automation")
	l = l.Set("disable-features", "Translate,TranslateUI,BlinkGenPropertyTrees,WebRtcHideLocalIpsWithMdns")
	l = l.Set("enable-features", "NetworkService,NetworkServiceInProcess")

	// SwiftShader-backed WebGL: a headless Chrome with no GPU otherwise
	// reports an empty WebGL renderer, itself a detection signal.
	l = l.Set("use-gl", "swiftshader").
		Set("use-angle", "swiftshader").
		Set("enable-unsafe-swiftshader").
		Set("enable-webgl").
		Set("enable-webgl2")

	if opts.IgnoreCertErrors {
		l = l.Set("ignore-certificate-errors").Set("ignore-ssl-errors")
	}

	l = l.Set("accept-lang", "en-US,en;q=0.9").
		Set("no-first-run").
		Set("no-default-browser-check").
		Set("disable-infobars").
		Set("disable-search-engine-choice-screen").
		Set("window-size", "1920,1080").
		Set("disable-background-networking").
		Set("disable-default-apps").
		Set("disable-extensions").
		Set("disable-sync").
		Set("mute-audio").
		Set("no-zygote").
		Set("safebrowsing-disable-auto-update").
		Set("js-flags", "--max-old-space-size=256").
		Set("disable-ipc-flooding-protection").
		Set("disable-renderer-backgrounding").
		Set("disable-gpu-sandbox")

	if isARM() {
		l = l.Set("disable-gpu-compositing")
		log.Debug().Msg("arm detected: using software compositing")
	}

	return l
}

func isARM() bool {
	return runtime.GOARCH == "arm64" || runtime.GOARCH == "arm"
}
