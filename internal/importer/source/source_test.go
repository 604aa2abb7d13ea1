package source_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/frahmantamala/expense-insights/internal/importer/source"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/xuri/excelize/v2"
)

func TestSource(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Import Source Suite")
}

var _ = Describe("ReadDelimited", func() {
	It("normalises headers and pads short rows", func() {
		table, err := source.ReadDelimited(strings.NewReader("Date, Amount ,Category,Description\n2025-03-01,12.50,Food\n,,,\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(table.Columns).To(Equal([]string{"date", "amount", "category", "description"}))
		Expect(table.Rows).To(HaveLen(1))
		Expect(table.Rows[0]).To(Equal([]string{"2025-03-01", "12.50", "Food", ""}))
	})

	It("sniffs tab and semicolon delimiters", func() {
		table, err := source.ReadDelimited(strings.NewReader("date\tamount\ta,b\n2025-03-01\t5\tx\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(table.Columns).To(Equal([]string{"date", "amount", "a,b"}))

		table, err = source.ReadDelimited(strings.NewReader("date;amount\n2025-03-01;\"1,5\"\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(table.Rows[0][1]).To(Equal("1,5"))
	})

	It("rejects an empty file", func() {
		_, err := source.ReadDelimited(strings.NewReader(""))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("FileSource", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("reads the first sheet of a workbook", func() {
		book := excelize.NewFile()
		sheet := book.GetSheetName(0)
		Expect(book.SetSheetRow(sheet, "A1", &[]interface{}{"Date", "Amount", "Category", "Description"})).To(Succeed())
		Expect(book.SetSheetRow(sheet, "A2", &[]interface{}{"2025-03-02", 42.1, "Transport", "Train"})).To(Succeed())
		path := filepath.Join(dir, "upload.xlsx")
		Expect(book.SaveAs(path)).To(Succeed())

		table, err := source.FileSource{Path: path, Name: "March.XLSX"}.Load(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(table.Columns).To(Equal([]string{"date", "amount", "category", "description"}))
		Expect(table.Rows).To(Equal([][]string{{"2025-03-02", "42.1", "Transport", "Train"}}))
	})

	It("refuses unknown extensions", func() {
		path := filepath.Join(dir, "notes.pdf")
		Expect(os.WriteFile(path, []byte("x"), 0o600)).To(Succeed())
		_, err := source.FileSource{Path: path}.Load(context.Background())
		Expect(err).To(MatchError(source.ErrUnsupported))
		Expect(source.SupportedFile("a.TSV")).To(BeTrue())
	})
})

var _ = Describe("SQL sources", func() {
	var url string

	BeforeEach(func() {
		path := filepath.Join(GinkgoT().TempDir(), "ledger.db")
		db, err := sql.Open("sqlite", path)
		Expect(err).NotTo(HaveOccurred())
		defer db.Close()
		_, err = db.Exec(`CREATE TABLE spending (date TEXT, amount REAL, category TEXT, description TEXT)`)
		Expect(err).NotTo(HaveOccurred())
		_, err = db.Exec(`INSERT INTO spending VALUES ('2025-03-01', 9.5, 'Food', 'Bagels'), ('2025-03-02', NULL, 'Food', 'Unknown')`)
		Expect(err).NotTo(HaveOccurred())
		url = "sqlite://" + path
	})

	It("copies a whole table", func() {
		table, err := source.TableSource{URL: url, Table: "spending"}.Load(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(table.Columns).To(Equal([]string{"date", "amount", "category", "description"}))
		Expect(table.Rows).To(HaveLen(2))
		Expect(table.Rows[0]).To(Equal([]string{"2025-03-01", "9.5", "Food", "Bagels"}))
		Expect(table.Rows[1][1]).To(Equal(""))
	})

	It("runs a stored query", func() {
		table, err := source.QuerySource{URL: url, SQL: "SELECT date, amount, category, description FROM spending WHERE amount IS NOT NULL"}.Load(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(table.Rows).To(HaveLen(1))
	})

	It("validates table identifiers", func() {
		_, err := source.TableSource{URL: url, Table: "spending; DROP TABLE spending"}.Load(context.Background())
		Expect(err).To(HaveOccurred())
		Expect(source.ValidateTableName("public.spending")).To(Succeed())
	})

	It("picks drivers by scheme and redacts credentials", func() {
		driver, _, err := source.Driver("postgres://u:secret@db:5432/app")
		Expect(err).NotTo(HaveOccurred())
		Expect(driver).To(Equal("pgx"))
		Expect(source.Redact("postgres://u:secret@db:5432/app")).NotTo(ContainSubstring("secret"))

		_, _, err = source.Driver("mysql://x")
		Expect(err).To(MatchError(source.ErrUnsupported))
	})
})
