// Command generate produces a linked set of sample CSV files for manual
// testing: invoices, payments, salary receipts, exchange rates and a bank
// statement whose movements reference the documents. Roughly a third of the
// movements are bank fees, a third map to documents and the rest stay
// unmatched.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

type generator struct {
	rng   *rand.Rand
	start time.Time
}

var feeConcepts = []string{
	"IMP.LEY 25413 DEBITO",
	"COMISION MANTENIMIENTO CUENTA",
	"SIRCREB RETENCION",
	"IVA TASA GENERAL",
}

var suppliers = []struct {
	name string
	cuit string
}{
	{"Proveedor SA", "30-70907678-3"},
	{"Consultora SRL", "30-57142135-2"},
	{"Servicios del Sur SA", "30-71234567-1"},
}

func main() {
	var (
		count     = flag.Int("count", 30, "number of invoices to generate")
		outputDir = flag.String("output-dir", "generated", "output directory")
		seed      = flag.Int64("seed", 42, "random seed for reproducible data")
	)
	flag.Parse()

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	g := &generator{
		rng:   rand.New(rand.NewSource(*seed)),
		start: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	if err := g.writeAll(*outputDir, *count); err != nil {
		log.Fatalf("generation failed: %v", err)
	}
	fmt.Printf("wrote sample data for %d invoices to %s\n", *count, *outputDir)
}

func (g *generator) writeAll(dir string, count int) error {
	type invoice struct {
		id       string
		date     time.Time
		supplier int
		total    float64
	}

	invoices := make([]invoice, count)
	for i := range invoices {
		invoices[i] = invoice{
			id:       fmt.Sprintf("FC-%04d", i+1),
			date:     g.start.AddDate(0, 0, g.rng.Intn(28)),
			supplier: g.rng.Intn(len(suppliers)),
			total:    float64(g.rng.Intn(500000))/100 + 1000,
		}
	}

	if err := g.writeCSV(dir, "facturas.csv",
		[]string{"numero", "fecha_emision", "cuit_emisor", "razon_social", "total", "moneda", "descripcion"},
		count, func(i int) []string {
			inv := invoices[i]
			s := suppliers[inv.supplier]
			return []string{
				inv.id, inv.date.Format("02/01/2006"), s.cuit, s.name,
				fmt.Sprintf("%.2f", inv.total), "ARS", "Servicio mensual",
			}
		}); err != nil {
		return err
	}

	// Pay two thirds of the invoices a few days after issue.
	paid := count * 2 / 3
	if err := g.writeCSV(dir, "pagos.csv",
		[]string{"numero", "fecha_pago", "importe", "moneda", "cuit_beneficiario", "beneficiario", "descripcion", "factura"},
		paid, func(i int) []string {
			inv := invoices[i]
			s := suppliers[inv.supplier]
			linked := ""
			if i%2 == 0 {
				linked = inv.id
			}
			return []string{
				fmt.Sprintf("OP-%04d", i+1),
				inv.date.AddDate(0, 0, 2+g.rng.Intn(8)).Format("02/01/2006"),
				fmt.Sprintf("%.2f", inv.total), "ARS", s.cuit, s.name, "", linked,
			}
		}); err != nil {
		return err
	}

	if err := g.writeCSV(dir, "recibos.csv",
		[]string{"numero", "fecha_pago", "cuil", "empleado", "neto"},
		5, func(i int) []string {
			return []string{
				fmt.Sprintf("REC-%04d", i+1),
				g.start.AddDate(0, 1, 0).Format("02/01/2006"),
				"20-12345678-6", "Juan Perez",
				fmt.Sprintf("%.2f", 500000+float64(g.rng.Intn(40000000))/100),
			}
		}); err != nil {
		return err
	}

	if err := g.writeCSV(dir, "cotizaciones.csv",
		[]string{"moneda", "fecha", "cotizacion"},
		28, func(i int) []string {
			return []string{
				"USD",
				g.start.AddDate(0, 0, i).Format("02/01/2006"),
				fmt.Sprintf("%.2f", 1000+float64(i)*2.5),
			}
		}); err != nil {
		return err
	}

	// Statement: fee lines, debits mirroring the paid invoices, and noise.
	rows := make([][]string, 0, count*2)
	for i := 0; i < paid; i++ {
		inv := invoices[i]
		s := suppliers[inv.supplier]
		concept := fmt.Sprintf("TRANSFERENCI %s", digitsOnly(s.cuit))
		rows = append(rows, []string{
			inv.date.AddDate(0, 0, 3).Format("02/01/2006"), "",
			concept, fmt.Sprintf("%.2f", inv.total), "", "",
		})
	}
	for i := 0; i < count/3; i++ {
		rows = append(rows, []string{
			g.start.AddDate(0, 0, g.rng.Intn(28)).Format("02/01/2006"), "",
			feeConcepts[g.rng.Intn(len(feeConcepts))],
			fmt.Sprintf("%.2f", float64(g.rng.Intn(50000))/100), "", "",
		})
	}
	for i := 0; i < count/3; i++ {
		rows = append(rows, []string{
			g.start.AddDate(0, 0, g.rng.Intn(28)).Format("02/01/2006"), "",
			"MOVIMIENTO VARIO SIN REFERENCIA",
			fmt.Sprintf("%.2f", float64(g.rng.Intn(900000))/100), "", "",
		})
	}
	g.rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })

	return g.writeCSV(dir, "extracto.csv",
		[]string{"fecha", "fecha_valor", "concepto", "debito", "credito", "observaciones"},
		len(rows), func(i int) []string { return rows[i] })
}

func (g *generator) writeCSV(dir, name string, header []string, count int, row func(int) []string) error {
	file, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		if err := w.Write(row(i)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func digitsOnly(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			out = append(out, r)
		}
	}
	return string(out)
}
