// Package evaltest lets structured output evals be written as standard Go
// tests.
//
// A Harness wraps *testing.T and holds the comparison options. Each eval
// case runs as a subtest via Harness.Run and receives a TestCase that takes
// the recorded model output and its ground truth, then asserts on the
// overall score, individual field scores, or any registered judge.
//
// Example usage:
//
//	func TestInvoiceExtraction(t *testing.T) {
//	    h := evaltest.New(t)
//	    h.Run("totals", func(tc *evaltest.TestCase) {
//	        tc.Output(modelResponse)
//	        tc.Expect(`{"total": 42, "currency": "EUR"}`)
//	        tc.AssertScore(evaltest.ScoreAtLeast(0.9))
//	        tc.AssertField("total", evaltest.ScoreExact(1))
//	    })
//	}
package evaltest
