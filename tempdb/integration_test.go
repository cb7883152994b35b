package tempdb_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/slingdata-io/sqlstmt"
	"github.com/slingdata-io/sqlstmt/tempdb"
)

var _ = Describe("Statement against a live server", func() {
	var (
		db   *tempdb.TempDB
		stmt *sqlstmt.Statement
	)

	BeforeEach(func() {
		p := mustParse(liveURL())
		// the URL's database is only a placeholder; each test gets a fresh one
		var err error
		db, err = tempdb.New(tempdb.Config{
			Host:     p.Host,
			Port:     p.Port,
			User:     p.User,
			Password: p.Password,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(db.Initialise()).To(Succeed())
		stmt = sqlstmt.NewStatement(db.Conn())
	})

	AfterEach(func() {
		if stmt != nil {
			stmt.Close()
			stmt = nil
		}
		if db != nil {
			db.Close()
			db = nil
		}
	})

	fetch := func() bool {
		ok, err := stmt.Fetch()
		Expect(err).NotTo(HaveOccurred())
		return ok
	}

	It("should insert and query rows", func() {
		Expect(db.Conn().Execute("CREATE TABLE `test` (`id` INT NOT NULL PRIMARY KEY, `name` VARCHAR(64) NOT NULL)")).To(Succeed())

		Expect(stmt.Prepare(2, "INSERT INTO `test` (`id`, `name`) VALUES (1, 'foo'), (?, ?)")).To(Succeed())
		Expect(stmt.BindInt64(0, 42)).To(Succeed())
		Expect(stmt.BindString(1, "bar")).To(Succeed())
		Expect(stmt.Execute()).To(Succeed())
		Expect(stmt.RowsAffected()).To(Equal(int64(2)))

		Expect(stmt.Prepare(0, "SELECT * FROM `test` ORDER BY `id`")).To(Succeed())
		Expect(stmt.Query()).To(Succeed())
		Expect(fetch()).To(BeTrue())
		Expect(stmt.GetInt64("id")).To(Equal(int64(1)))
		Expect(stmt.GetString("name")).To(Equal("foo"))
		Expect(fetch()).To(BeTrue())
		Expect(stmt.GetInt64("id")).To(Equal(int64(42)))
		Expect(stmt.GetString("name")).To(Equal("bar"))
		Expect(fetch()).To(BeFalse())
	})

	It("should report NULL columns", func() {
		Expect(db.Conn().Execute("CREATE TABLE `test` (`id` INT NOT NULL PRIMARY KEY, `name` VARCHAR(64) NULL);" +
			"INSERT INTO `test` VALUES (1, 'foo'), (2, NULL), (3, 'bar');")).To(Succeed())

		Expect(stmt.Prepare(0, "SELECT `name` FROM `test` ORDER BY `id`")).To(Succeed())
		Expect(stmt.Query()).To(Succeed())
		Expect(fetch()).To(BeTrue())
		Expect(stmt.IsNull("name")).To(BeFalse())
		Expect(stmt.GetString("name")).To(Equal("foo"))
		Expect(fetch()).To(BeTrue())
		Expect(stmt.IsNull("name")).To(BeTrue())
		Expect(fetch()).To(BeTrue())
		Expect(sqlstmt.Get[string](stmt, "name")).To(Equal("bar"))
		Expect(fetch()).To(BeFalse())
	})

	It("should round-trip the int64 extremes", func() {
		Expect(db.Conn().Execute("CREATE TABLE `test` (`id` INT NOT NULL PRIMARY KEY, `small` TINYINT NOT NULL, `big` BIGINT NOT NULL)")).To(Succeed())

		Expect(stmt.Prepare(2, "INSERT INTO `test` (`id`, `small`, `big`) VALUES (1, -5, ?), (2, 100, ?)")).To(Succeed())
		Expect(sqlstmt.BindValue(stmt, 0, int64(math.MinInt64))).To(Succeed())
		Expect(sqlstmt.BindValue(stmt, 1, int64(math.MaxInt64))).To(Succeed())
		Expect(stmt.Execute()).To(Succeed())

		Expect(stmt.Prepare(0, "SELECT `small`, `big` FROM `test` ORDER BY `id`")).To(Succeed())
		Expect(stmt.Query()).To(Succeed())
		Expect(fetch()).To(BeTrue())
		Expect(sqlstmt.Get[int8](stmt, "small")).To(Equal(int8(-5)))
		Expect(stmt.GetInt64("big")).To(Equal(int64(math.MinInt64)))
		Expect(fetch()).To(BeTrue())
		Expect(stmt.GetInt64("small")).To(Equal(int64(100)))
		Expect(stmt.GetInt64("big")).To(Equal(int64(math.MaxInt64)))
		Expect(fetch()).To(BeFalse())
	})

	It("should store booleans as integers", func() {
		Expect(db.Conn().Execute("CREATE TABLE `test` (`id` INT NOT NULL PRIMARY KEY, `boolean` BOOL NULL)")).To(Succeed())

		Expect(stmt.Prepare(3, "INSERT INTO `test` (`id`, `boolean`) VALUES (1, ?), (2, ?), (3, ?)")).To(Succeed())
		Expect(stmt.BindBool(0, true)).To(Succeed())
		Expect(stmt.BindBool(1, false)).To(Succeed())
		Expect(stmt.BindNull(2)).To(Succeed())
		Expect(stmt.Execute()).To(Succeed())

		Expect(stmt.Prepare(0, "SELECT `boolean` FROM `test` ORDER BY `id`")).To(Succeed())
		Expect(stmt.Query()).To(Succeed())
		Expect(fetch()).To(BeTrue())
		Expect(stmt.GetBool("boolean")).To(BeTrue())
		Expect(fetch()).To(BeTrue())
		Expect(stmt.GetBool("boolean")).To(BeFalse())
		Expect(fetch()).To(BeTrue())
		Expect(stmt.IsNull("boolean")).To(BeTrue())
		Expect(fetch()).To(BeFalse())
	})

	It("should preserve zero and high bytes in blobs", func() {
		Expect(db.Conn().Execute("CREATE TABLE `test` (`data` BLOB NOT NULL)")).To(Succeed())
		data := []byte("x\x00\xffy")

		Expect(stmt.Prepare(1, "INSERT INTO `test` (`data`) VALUES (?)")).To(Succeed())
		Expect(stmt.BindBytes(0, data)).To(Succeed())
		Expect(stmt.Execute()).To(Succeed())

		Expect(stmt.Prepare(0, "SELECT `data` FROM `test`")).To(Succeed())
		Expect(stmt.Query()).To(Succeed())
		Expect(fetch()).To(BeTrue())
		Expect(stmt.GetBytes("data")).To(Equal(data))
		Expect(fetch()).To(BeFalse())
	})

	It("should round-trip UTF-8 text", func() {
		Expect(db.Conn().Execute("CREATE TABLE `test` (`text` TEXT NOT NULL)")).To(Succeed())
		value := "abcäöüßxzy"

		Expect(stmt.Prepare(1, "INSERT INTO `test` (`text`) VALUES (?)")).To(Succeed())
		Expect(stmt.Bind(0, value)).To(Succeed())
		Expect(stmt.Execute()).To(Succeed())

		Expect(stmt.Prepare(0, "SELECT `text` FROM `test`")).To(Succeed())
		Expect(stmt.Query()).To(Succeed())
		Expect(fetch()).To(BeTrue())
		Expect(stmt.GetString("text")).To(Equal(value))
		Expect(fetch()).To(BeFalse())
	})
})

func mustParse(raw string) sqlstmt.URLParams {
	p, err := sqlstmt.ParseURL(raw)
	Expect(err).NotTo(HaveOccurred())
	return p
}
