package locator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webpilot9/webpilot/api/schemas"
	"github.com/webpilot9/webpilot/internal/config"
	"github.com/webpilot9/webpilot/internal/mocks"
)

func fastLocatorConfig() config.LocatorConfig {
	cfg := config.NewDefaultConfig().Locator
	cfg.SettleWindow = time.Millisecond
	return cfg
}

func readyElement(selector string) *mocks.FakeElement {
	return &mocks.FakeElement{
		Selector: selector,
		Visible:  true,
		Enabled:  true,
		Geometry: schemas.ElementGeometry{X: 10, Y: 20, Width: 100, Height: 30},
	}
}

func TestVerifyReadyElement(t *testing.T) {
	driver := mocks.NewFakeDriver()
	driver.AddElement(readyElement("#go"))
	driver.EvaluateFunc = func(ctx context.Context, fnDecl string, res any, args ...any) error {
		if strings.Contains(fnDecl, "elementFromPoint") {
			*(res.(*bool)) = false // not occluded
			return nil
		}
		*(res.(*bool)) = true // in viewport
		return nil
	}

	checker := NewReadinessChecker(driver, fastLocatorConfig(), nil)
	report, err := checker.Verify(context.Background(), "#go", VerifyOptions{})
	require.NoError(t, err)

	assert.True(t, report.Ready())
	assert.True(t, report.Visible)
	assert.True(t, report.Enabled)
	assert.True(t, report.Stable)
	assert.True(t, report.InViewport)
	assert.False(t, report.Occluded)
}

func TestVerifyOccludedElement(t *testing.T) {
	driver := mocks.NewFakeDriver()
	driver.AddElement(readyElement("#go"))
	driver.EvaluateFunc = func(ctx context.Context, fnDecl string, res any, args ...any) error {
		if strings.Contains(fnDecl, "elementFromPoint") {
			*(res.(*bool)) = true // an overlay covers the center point
			return nil
		}
		*(res.(*bool)) = true
		return nil
	}

	checker := NewReadinessChecker(driver, fastLocatorConfig(), nil)
	report, err := checker.Verify(context.Background(), "#go", VerifyOptions{})
	require.NoError(t, err)

	assert.True(t, report.Occluded)
	assert.False(t, report.Ready())
}

func TestVerifyStopsAtFirstFailure(t *testing.T) {
	t.Run("invisible element skips later checks", func(t *testing.T) {
		driver := mocks.NewFakeDriver()
		driver.AddElement(&mocks.FakeElement{Selector: "#hidden", Visible: false, Enabled: true})

		checker := NewReadinessChecker(driver, fastLocatorConfig(), nil)
		report, err := checker.Verify(context.Background(), "#hidden", VerifyOptions{})
		require.NoError(t, err)

		assert.False(t, report.Visible)
		assert.False(t, report.Ready())
		assert.Zero(t, driver.CallCount("IsEnabled"), "enabled check should not run for an invisible element")
		assert.Zero(t, driver.CallCount("Evaluate"), "occlusion check should not run for an invisible element")
	})

	t.Run("disabled element skips scroll and occlusion", func(t *testing.T) {
		driver := mocks.NewFakeDriver()
		driver.AddElement(&mocks.FakeElement{Selector: "#off", Visible: true, Enabled: false})

		checker := NewReadinessChecker(driver, fastLocatorConfig(), nil)
		report, err := checker.Verify(context.Background(), "#off", VerifyOptions{})
		require.NoError(t, err)

		assert.True(t, report.Visible)
		assert.False(t, report.Enabled)
		assert.Zero(t, driver.CallCount("ScrollIntoView"))
	})
}

func TestVerifyUnstableGeometry(t *testing.T) {
	driver := mocks.NewFakeDriver()
	driver.AddElement(readyElement("#moving"))

	// The element drifts on every sample and never settles.
	x := 0.0
	driver.GeometryFunc = func(ctx context.Context, selector string) (schemas.ElementGeometry, error) {
		x += 5
		return schemas.ElementGeometry{X: x, Y: 0, Width: 10, Height: 10}, nil
	}

	checker := NewReadinessChecker(driver, fastLocatorConfig(), nil)
	report, err := checker.Verify(context.Background(), "#moving", VerifyOptions{})
	require.NoError(t, err)

	assert.False(t, report.Stable)
	assert.False(t, report.Ready())
}

func TestVerifyDriverErrorMeansNotReady(t *testing.T) {
	driver := mocks.NewFakeDriver()
	// No such element: the fake returns false from IsVisible without an
	// error, so force an error path through the geometry probe instead.
	driver.AddElement(readyElement("#gone"))
	driver.GeometryFunc = func(ctx context.Context, selector string) (schemas.ElementGeometry, error) {
		return schemas.ElementGeometry{}, assert.AnError
	}

	checker := NewReadinessChecker(driver, fastLocatorConfig(), nil)
	report, err := checker.Verify(context.Background(), "#gone", VerifyOptions{})

	assert.Error(t, err)
	assert.False(t, report.Ready())
}

func TestVerifyRequireViewport(t *testing.T) {
	driver := mocks.NewFakeDriver()
	driver.AddElement(readyElement("#below-fold"))
	driver.EvaluateFunc = func(ctx context.Context, fnDecl string, res any, args ...any) error {
		if strings.Contains(fnDecl, "elementFromPoint") {
			*(res.(*bool)) = false
			return nil
		}
		*(res.(*bool)) = false // not in viewport
		return nil
	}

	checker := NewReadinessChecker(driver, fastLocatorConfig(), nil)

	report, err := checker.Verify(context.Background(), "#below-fold", VerifyOptions{RequireViewport: true})
	require.NoError(t, err)
	assert.False(t, report.InViewport)
	// With the viewport requirement the sequence stops before occlusion.
	assert.False(t, report.Occluded)
}
