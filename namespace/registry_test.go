package namespace_test

import (
	"sync"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/relloyd/cdcpipe/namespace"
	"github.com/relloyd/cdcpipe/table"
)

var _ = Describe("Namespace registry", func() {
	var ns *namespace.Namespace

	BeforeEach(func() {
		var err error
		ns, err = namespace.New(namespace.Config{
			FileFormatName: "ff1",
			StageName:      "stage1",
			StorageAccount: "acct",
			Container:      "c",
			Database:       "demo",
			Schema:         "rac",
		})
		Expect(err).ToNot(HaveOccurred())
	})

	It("Should return tables in registration order", func() {
		for _, name := range []string{"t3", "t1", "t2"} {
			s, err := table.NewSpec("demo", "rac", name, nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(ns.Register(s)).To(Succeed())
		}
		var names []string
		for _, s := range ns.Tables() {
			names = append(names, s.TableName())
		}
		Expect(names).To(Equal([]string{"t3", "t1", "t2"}))
	})

	It("Should accept exactly one of many concurrent registrations of the same table", func() {
		s, _ := table.NewSpec("demo", "rac", "t1", []string{"id"})
		wg := sync.WaitGroup{}
		errs := make(chan error, 10)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- ns.Register(s)
			}()
		}
		wg.Wait()
		close(errs)
		ok := 0
		for err := range errs {
			if err == nil {
				ok++
			} else {
				Expect(err).To(BeAssignableToTypeOf(&namespace.DuplicateTableError{}))
			}
		}
		Expect(ok).To(Equal(1))
		Expect(ns.Len()).To(Equal(1))
	})

	It("Should qualify object names with the namespace database and schema", func() {
		Expect(ns.FullyQualified("ff1")).To(Equal("demo.rac.ff1"))
		Expect(ns.Root()).To(Equal("c@acct"))
	})
})
