package adapter_test

import (
	"net/url"
	"testing"

	"github.com/h2hsecure/moodlews/internal/adapter"
	"github.com/h2hsecure/moodlews/internal/domain"

	. "github.com/onsi/gomega"
)

func TestEncodeFormNested(t *testing.T) {
	RegisterTestingT(t)

	params := domain.Object(
		domain.M("courseid", domain.Int(2)),
		domain.M("categories", domain.Array(domain.Object(
			domain.M("fullname", domain.String("Sub-CPMK-1")),
			domain.M("options", domain.Object(
				domain.M("aggregation", domain.Int(13)),
				domain.M("hidden", domain.Bool(false)),
				domain.M("parent", domain.Null()),
			)),
		))),
	)

	form, err := adapter.EncodeForm(params)
	Expect(err).To(BeNil())
	Expect(form).To(Equal(url.Values{
		"courseid":                            {"2"},
		"categories[0][fullname]":             {"Sub-CPMK-1"},
		"categories[0][options][aggregation]": {"13"},
		"categories[0][options][hidden]":      {"0"},
	}))
}

func TestEncodeFormUsers(t *testing.T) {
	RegisterTestingT(t)

	params := domain.Object(domain.M("users", domain.Array(
		domain.Object(domain.M("username", domain.String("a")), domain.M("suspended", domain.Bool(true))),
		domain.Object(domain.M("username", domain.String("b"))),
	)))

	form, err := adapter.EncodeForm(params)
	Expect(err).To(BeNil())
	Expect(form.Encode()).To(Equal("users%5B0%5D%5Bsuspended%5D=1&users%5B0%5D%5Busername%5D=a&users%5B1%5D%5Busername%5D=b"))
}

func TestEncodeFormEmpty(t *testing.T) {
	RegisterTestingT(t)

	form, err := adapter.EncodeForm(domain.Null())
	Expect(err).To(BeNil())
	Expect(form).To(BeEmpty())

	form, err = adapter.EncodeForm(domain.Object(domain.M("options", domain.Object())))
	Expect(err).To(BeNil())
	Expect(form).To(BeEmpty())

	_, err = adapter.EncodeForm(domain.String("loose"))
	Expect(err).NotTo(BeNil())
}
