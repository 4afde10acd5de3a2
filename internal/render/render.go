// Package render rasterizes game snapshots with gg.
// It is used for the screenshot endpoint and headless captures; the browser
// client draws its own frames from the same snapshots.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"math/rand"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"roboclaude/internal/config"
	"roboclaude/internal/game"
)

// Palette
var (
	backgroundColor = color.RGBA{12, 12, 28, 255}
	gridColor       = color.RGBA{30, 30, 45, 255}
	borderColor     = color.RGBA{75, 85, 99, 255}
	playerColor     = color.RGBA{59, 130, 246, 255}
	turretCoreColor = color.RGBA{5, 150, 105, 255}
	boltColor       = color.RGBA{96, 165, 250, 255}
	panelColor      = color.RGBA{18, 18, 24, 245}
	accentColor     = color.RGBA{0, 212, 255, 255}
	subtleText      = color.RGBA{160, 165, 180, 255}
)

// Renderer draws snapshots onto a fixed-size canvas. Scale multiplies the
// logical arena size; 1 renders at 800x600.
type Renderer struct {
	width  float64
	height float64
	scale  float64
}

// New creates a renderer for the given arena.
func New(arena config.ArenaConfig, scale float64) *Renderer {
	if scale <= 0 {
		scale = 1
	}
	return &Renderer{width: arena.Width, height: arena.Height, scale: scale}
}

// Size returns the output image size in pixels.
func (r *Renderer) Size() (int, int) {
	return int(math.Round(r.width * r.scale)), int(math.Round(r.height * r.scale))
}

// Render draws one snapshot and returns the frame.
func (r *Renderer) Render(snap *game.Snapshot) image.Image {
	w, h := r.Size()
	dc := gg.NewContext(w, h)
	dc.SetFontFace(basicfont.Face7x13)
	dc.Scale(r.scale, r.scale)

	r.drawBackground(dc)
	if snap == nil {
		return dc.Image()
	}

	for _, e := range snap.Enemies {
		drawEnemy(dc, e)
	}
	for _, b := range snap.Bullets {
		drawBullet(dc, b)
	}
	drawPlayer(dc, snap.Player)
	for i, link := range snap.Lightning.Chain {
		drawBolt(dc, link, int64(snap.Tick)*31+int64(i))
	}

	r.drawHUD(dc, snap)
	return dc.Image()
}

// EncodePNG renders a snapshot and writes it as PNG.
func (r *Renderer) EncodePNG(w io.Writer, snap *game.Snapshot) error {
	if err := png.Encode(w, r.Render(snap)); err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	return nil
}

func (r *Renderer) drawBackground(dc *gg.Context) {
	dc.SetColor(backgroundColor)
	dc.DrawRectangle(0, 0, r.width, r.height)
	dc.Fill()

	dc.SetColor(gridColor)
	dc.SetLineWidth(1)
	for x := 50.0; x < r.width; x += 50 {
		dc.DrawLine(x, 0, x, r.height)
	}
	for y := 50.0; y < r.height; y += 50 {
		dc.DrawLine(0, y, r.width, y)
	}
	dc.Stroke()

	dc.SetColor(borderColor)
	dc.SetLineWidth(2)
	dc.DrawRectangle(0, 0, r.width, r.height)
	dc.Stroke()
}

func drawPlayer(dc *gg.Context, p game.Player) {
	dc.SetColor(playerColor)
	dc.DrawRectangle(p.X, p.Y, p.Size, p.Size)
	dc.Fill()

	dc.SetColor(color.White)
	dc.SetLineWidth(1)
	dc.DrawRectangle(p.X, p.Y, p.Size, p.Size)
	dc.Stroke()
}

func drawEnemy(dc *gg.Context, e game.Enemy) {
	c := e.Center()
	radius := e.Size / 2
	dc.SetColor(parseHexColor(e.Color))

	switch e.Kind {
	case game.EnemyEnforcer:
		dc.DrawCircle(c.X, c.Y, radius)
		dc.Fill()
	case game.EnemyTank:
		dc.DrawRectangle(e.X, e.Y, e.Size*1.2, e.Size*0.7)
		dc.Fill()
	case game.EnemySpheroid:
		dc.DrawRegularPolygon(8, c.X, c.Y, radius, 0)
		dc.Fill()
		dc.SetColor(turretCoreColor)
		dc.DrawCircle(c.X, c.Y, radius*0.4)
		dc.Fill()
	default:
		dc.DrawRectangle(e.X, e.Y, e.Size, e.Size)
		dc.Fill()
	}

	drawHealthBar(dc, e)
}

func drawHealthBar(dc *gg.Context, e game.Enemy) {
	if e.MaxHealth <= 0 {
		return
	}
	pct := math.Max(0, math.Min(1, float64(e.Health)/float64(e.MaxHealth)))

	dc.SetColor(color.RGBA{255, 255, 255, 77})
	dc.DrawRectangle(e.X, e.Y-8, e.Size, 4)
	dc.Fill()

	if pct > 0.5 {
		dc.SetColor(color.RGBA{83, 255, 69, 255})
	} else if pct > 0.25 {
		dc.SetColor(color.RGBA{255, 149, 0, 255})
	} else {
		dc.SetColor(color.RGBA{255, 62, 62, 255})
	}
	dc.DrawRectangle(e.X, e.Y-8, e.Size*pct, 4)
	dc.Fill()
}

func drawBullet(dc *gg.Context, b game.Bullet) {
	c := parseHexColor(b.Color)
	center := b.Center()
	dc.SetColor(c)

	switch {
	case b.Length > 0:
		// Laser: a line trailing back from the nose
		dc.SetLineWidth(4)
		dc.DrawLine(center.X, center.Y, center.X-b.DX*b.Length, center.Y-b.DY*b.Length)
		dc.Stroke()
	case b.Kind == game.BulletSeeking:
		// Rocket: triangle pointing along the heading
		dc.Push()
		dc.Translate(center.X, center.Y)
		dc.Rotate(math.Atan2(b.DY, b.DX))
		dc.MoveTo(b.Size*1.5, 0)
		dc.LineTo(-b.Size, -b.Size*0.8)
		dc.LineTo(-b.Size, b.Size*0.8)
		dc.ClosePath()
		dc.Fill()
		dc.Pop()
	default:
		dc.DrawCircle(center.X, center.Y, b.Size/2)
		dc.Fill()
	}

	if b.ReflectionsRemaining > 0 && !b.EnemyBullet {
		dc.SetColor(color.White)
		dc.DrawStringAnchored(fmt.Sprint(b.ReflectionsRemaining), center.X, center.Y-b.Size-4, 0.5, 0.5)
	}
}

// drawBolt draws a jagged link. The jitter is seeded so the same snapshot
// always renders the same frame.
func drawBolt(dc *gg.Context, link game.LightningLink, seed int64) {
	dx, dy := link.To.X-link.From.X, link.To.Y-link.From.Y
	dist := math.Hypot(dx, dy)
	if dist < 1 {
		return
	}

	rng := rand.New(rand.NewSource(seed))
	segments := max(3, int(dist/20))
	px, py := -dy/dist, dx/dist

	points := make([]gg.Point, 0, segments+1)
	points = append(points, gg.Point{X: link.From.X, Y: link.From.Y})
	for i := 1; i < segments; i++ {
		t := float64(i) / float64(segments)
		off := (rng.Float64() - 0.5) * 30
		points = append(points, gg.Point{
			X: link.From.X + dx*t + px*off,
			Y: link.From.Y + dy*t + py*off,
		})
	}
	points = append(points, gg.Point{X: link.To.X, Y: link.To.Y})

	strokePath := func(c color.Color, width float64) {
		dc.SetColor(c)
		dc.SetLineWidth(width)
		dc.MoveTo(points[0].X, points[0].Y)
		for _, pt := range points[1:] {
			dc.LineTo(pt.X, pt.Y)
		}
		dc.Stroke()
	}
	strokePath(color.RGBA{96, 165, 250, 80}, 7)
	strokePath(boltColor, 3)
	strokePath(color.White, 1)
}

func (r *Renderer) drawHUD(dc *gg.Context, snap *game.Snapshot) {
	const (
		panelX = 12.0
		panelY = 12.0
		panelW = 200.0
		panelH = 92.0
	)

	dc.SetColor(color.RGBA{0, 0, 0, 25})
	dc.DrawRoundedRectangle(panelX+3, panelY+3, panelW, panelH, 6)
	dc.Fill()
	dc.SetColor(panelColor)
	dc.DrawRoundedRectangle(panelX, panelY, panelW, panelH, 6)
	dc.Fill()
	dc.SetColor(accentColor)
	dc.DrawRoundedRectangle(panelX, panelY, 4, panelH, 2)
	dc.Fill()

	x := panelX + 14
	dc.SetColor(color.White)
	dc.DrawString(fmt.Sprintf("SCORE %d", snap.Score), x, panelY+20)
	dc.DrawString(fmt.Sprintf("WAVE  %d", snap.Wave), x, panelY+36)

	dc.SetColor(subtleText)
	weapon := game.Weapons[snap.Weapon]
	dc.DrawString(fmt.Sprintf("%s  x%d", weapon.Name, snap.Reflections), x, panelY+52)
	dc.DrawString(fmt.Sprintf("Hits taken %d", snap.PlayerHits), x, panelY+68)

	// Lightning cooldown bar
	barW := panelW - 28
	dc.SetColor(color.RGBA{51, 51, 51, 255})
	dc.DrawRectangle(x, panelY+76, barW, 6)
	dc.Fill()
	if snap.Lightning.Ready {
		dc.SetColor(boltColor)
		dc.DrawRectangle(x, panelY+76, barW, 6)
	} else {
		dc.SetColor(color.RGBA{96, 165, 250, 120})
		dc.DrawRectangle(x, panelY+76, barW*(1-snap.Lightning.CooldownPercent/100), 6)
	}
	dc.Fill()

	switch {
	case snap.Paused:
		r.drawBanner(dc, "PAUSED")
	case snap.Message != "":
		r.drawBanner(dc, snap.Message)
	}
}

func (r *Renderer) drawBanner(dc *gg.Context, text string) {
	w, _ := dc.MeasureString(text)
	bw := w + 40
	cx, cy := r.width/2, r.height/2

	dc.SetColor(panelColor)
	dc.DrawRoundedRectangle(cx-bw/2, cy-18, bw, 36, 4)
	dc.Fill()
	dc.SetColor(color.White)
	dc.DrawStringAnchored(text, cx, cy, 0.5, 0.35)
}

func parseHexColor(hex string) color.RGBA {
	if len(hex) != 7 || hex[0] != '#' {
		return color.RGBA{255, 255, 255, 255}
	}

	var r, g, b uint8
	if _, err := fmt.Sscanf(hex[1:], "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{255, 255, 255, 255}
	}
	return color.RGBA{r, g, b, 255}
}
