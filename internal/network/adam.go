package network

import "math"

// Adam optimizer constants (first/second moment decay, numerical floor).
const (
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-7
)

// Adam holds optimizer state: first and second moment estimates per trainable
// param plus the step counter. Recreating the optimizer (as the training loop
// does on learning-rate decay) resets the moments.
type Adam struct {
	learningRate float64
	step         int
	m            map[string][]float64
	v            map[string][]float64
}

// NewAdam creates an Adam optimizer with the given learning rate.
func NewAdam(learningRate float64) *Adam {
	return &Adam{
		learningRate: learningRate,
		m:            make(map[string][]float64),
		v:            make(map[string][]float64),
	}
}

// LearningRate returns the optimizer's learning rate.
func (a *Adam) LearningRate() float64 {
	return a.learningRate
}

// Step applies one Adam update to every trainable param of n.
func (a *Adam) Step(n *Network, grads gradients) {
	a.step++
	correction1 := 1 - math.Pow(adamBeta1, float64(a.step))
	correction2 := 1 - math.Pow(adamBeta2, float64(a.step))

	for _, p := range n.params {
		if !p.Trainable() {
			continue
		}
		g := grads[p.Spec.Name]
		m, ok := a.m[p.Spec.Name]
		if !ok {
			m = make([]float64, len(p.Data))
			a.m[p.Spec.Name] = m
		}
		v, ok := a.v[p.Spec.Name]
		if !ok {
			v = make([]float64, len(p.Data))
			a.v[p.Spec.Name] = v
		}
		for i := range p.Data {
			m[i] = adamBeta1*m[i] + (1-adamBeta1)*g[i]
			v[i] = adamBeta2*v[i] + (1-adamBeta2)*g[i]*g[i]
			mHat := m[i] / correction1
			vHat := v[i] / correction2
			p.Data[i] -= a.learningRate * mHat / (math.Sqrt(vHat) + adamEpsilon)
		}
	}
}
