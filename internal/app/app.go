// Package app contains the example page scripts: three anywidget widgets
// with debug panels, and the greeting component demo.
package app

import (
	"errors"
	"fmt"

	"github.com/livetemplate/widgetbridge"
	"github.com/livetemplate/widgetbridge/internal/anywidget"
	"github.com/livetemplate/widgetbridge/internal/bridge"
	"github.com/livetemplate/widgetbridge/internal/page"
)

// CounterDefinition is an integer counter using the class convention.
func CounterDefinition(src *Sources) *widgetbridge.Definition {
	return &widgetbridge.Definition{
		Name:   "CounterWidget",
		Traits: []widgetbridge.Trait{widgetbridge.Int("value", 0)},
		ESM:    src.Get("counter.js"),
	}
}

// TextDefinition is a text field using the class convention.
func TextDefinition(src *Sources) *widgetbridge.Definition {
	return &widgetbridge.Definition{
		Name:   "TextWidget",
		Traits: []widgetbridge.Trait{widgetbridge.String("text", "Streamlit x AnyWidget")},
		ESM:    src.Get("text.js"),
	}
}

// ModuleCounterDefinition is a styled counter using the module convention.
func ModuleCounterDefinition(src *Sources) *widgetbridge.Definition {
	return &widgetbridge.Definition{
		Name:   "ModuleCounterWidget",
		Traits: []widgetbridge.Trait{widgetbridge.Int("value", 0)},
		ESM:    src.Get("module_counter.js"),
		CSS:    src.Get("module_counter.css"),
	}
}

// Demo returns the anywidget demo page script.
func Demo(registry *bridge.Registry, src *Sources, debug bool) page.Script {
	return func(ctx *page.Context) error {
		lib, err := anywidget.Load(registry, debug)
		if errors.Is(err, anywidget.ErrNotInstalled) {
			ctx.Error(anywidget.InstallHint)
			return nil
		}
		if err != nil {
			return err
		}

		ctx.Title("AnyWidget in Streamlit Demo")
		ctx.Write("This demonstrates the integration of AnyWidget with Streamlit via a custom component.")

		if err := counterSection(ctx, lib, src); err != nil {
			return err
		}
		ctx.Divider()
		if err := textSection(ctx, lib, src); err != nil {
			return err
		}
		ctx.Divider()
		return moduleCounterSection(ctx, lib, src)
	}
}

func counterSection(ctx *page.Context, lib *anywidget.Library, src *Sources) error {
	ctx.Subheader("Counter Widget")
	counter, err := widgetbridge.New(CounterDefinition(src))
	if err != nil {
		return err
	}
	counterState, err := lib.Display(ctx, counter, "counter")
	if err != nil {
		return err
	}

	ctx.Write(fmt.Sprintf("Current counter value: %d", counter.Int("value")))

	newValue, moved, err := ctx.Slider("Set counter value", 0, 20, counter.Int("value"))
	if err != nil {
		return err
	}
	if moved && newValue != counter.Int("value") {
		if err := counter.Set("value", newValue); err != nil {
			return err
		}
		counterState["value"] = newValue
	}

	ctx.Expander("Counter Debug Info", func(c *page.Context) {
		c.Write("Counter State:", counterState)
		c.JSON(map[string]any{
			"counter_value": counter.Int("value"),
		})
	})
	return nil
}

func textSection(ctx *page.Context, lib *anywidget.Library, src *Sources) error {
	ctx.Subheader("Text Widget Test")
	textWidget, err := widgetbridge.New(TextDefinition(src))
	if err != nil {
		return err
	}
	textState, err := lib.Display(ctx, textWidget, "text")
	if err != nil {
		return err
	}

	ctx.Write(fmt.Sprintf("Current text: %s", textWidget.Text("text")))

	ctx.Expander("Text Debug Info", func(c *page.Context) {
		c.Write("Text State:", textState)
		c.JSON(map[string]any{
			"text_value": textWidget.Text("text"),
		})
	})
	return nil
}

func moduleCounterSection(ctx *page.Context, lib *anywidget.Library, src *Sources) error {
	ctx.Subheader("Module Counter Widget Test")
	moduleCounter, err := widgetbridge.New(ModuleCounterDefinition(src))
	if err != nil {
		return err
	}
	moduleCounterState, err := lib.Display(ctx, moduleCounter, "module_counter")
	if err != nil {
		return err
	}

	ctx.Expander("Module Counter Debug Info", func(c *page.Context) {
		c.Write("Module-based Counter State:", moduleCounterState)
		c.JSON(map[string]any{
			"module_counter_value": moduleCounter.Int("value"),
		})
	})
	return nil
}

// BridgeDemo returns the greeting page script: two independent calls of the
// bridge component, each writing the value it resolved to.
func BridgeDemo(registry *bridge.Registry) page.Script {
	return func(ctx *page.Context) error {
		c, ok := registry.Lookup(anywidget.ComponentName)
		if !ok {
			ctx.Error(anywidget.InstallHint)
			return nil
		}

		for _, name := range []string{"razaks", "mohammed"} {
			returnValue, _, err := c.Greet(ctx, name, name)
			if err != nil {
				return err
			}
			ctx.Write(returnValue)
		}
		return nil
	}
}
