package engine

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// browserPage adapts one borrowed tab to the Page interface. Lookups go
// through p (deadline-bound); cleanup goes through the release closure,
// which uses the raw tab so it works even after the deadline expired.
type browserPage struct {
	raw          *rod.Page
	p            *rod.Page
	router       *rod.HijackRouter
	health       *pageHealth
	fieldTimeout time.Duration
	release      func()
	closeOnce    sync.Once
}

func (bp *browserPage) Element(selector string) (Element, error) {
	el, err := bp.p.Timeout(bp.fieldTimeout).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("element %q: %w", selector, err)
	}
	return &browserElement{el: el}, nil
}

func (bp *browserPage) FindWithText(selector, substr string) (Element, bool) {
	els, err := bp.p.Elements(selector)
	if err != nil {
		return nil, false
	}
	for _, el := range els {
		txt, textErr := el.Text()
		if textErr != nil {
			continue
		}
		if strings.Contains(txt, substr) {
			return &browserElement{el: el}, true
		}
	}
	return nil, false
}

func (bp *browserPage) Elements(selector string) ([]Element, error) {
	els, err := bp.p.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("elements %q: %w", selector, err)
	}
	out := make([]Element, len(els))
	for i, el := range els {
		out[i] = &browserElement{el: el}
	}
	return out, nil
}

func (bp *browserPage) HTML() (string, error) {
	html, err := bp.p.HTML()
	if err != nil {
		bp.health.errs++
		return "", fmt.Errorf("page html: %w", err)
	}
	return html, nil
}

func (bp *browserPage) Close() {
	bp.closeOnce.Do(func() {
		if bp.router != nil {
			_ = bp.router.Stop()
		}
		bp.release()
	})
}

type browserElement struct {
	el *rod.Element
}

func (be *browserElement) Text() (string, error) {
	return be.el.Text()
}

func (be *browserElement) Click() error {
	return be.el.Click(proto.InputMouseButtonLeft, 1)
}

func (be *browserElement) Next() (Element, error) {
	next, err := be.el.Next()
	if err != nil {
		return nil, fmt.Errorf("next sibling: %w", err)
	}
	return &browserElement{el: next}, nil
}
