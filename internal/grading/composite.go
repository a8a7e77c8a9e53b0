package grading

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Resolvedores compostos: combinam graduações por perna no desfecho da aposta
// inteira. A graduação das pernas (incluindo ajuste de linha de teaser) é
// responsabilidade do chamador; aqui só entram desfechos prontos.

// LegGrade é o desfecho de uma perna junto com as odds dela.
type LegGrade struct {
	Result Result
	Odds   float64
}

// Regra de push de um teaser.
type TeaserPushRule string

const (
	TeaserPushRulePush   TeaserPushRule = "PUSH"   // aposta inteira vira push
	TeaserPushRuleLose   TeaserPushRule = "LOSE"   // push conta como derrota
	TeaserPushRuleRevert TeaserPushRule = "REVERT" // cai para o tier inferior
)

// Condição de encadeamento de um if-bet.
type IfCondition string

const (
	IfWinOnly  IfCondition = "IF_WIN_ONLY"
	IfWinOrTie IfCondition = "IF_WIN_OR_TIE"
)

// ResolveParlay aplica as regras clássicas de parlay:
// qualquer derrota perde tudo; só pushes empata; vitórias com pushes ganham
// com as odds recombinadas apenas sobre as pernas vencedoras.
// Retorna o desfecho e o payout em centavos.
func ResolveParlay(stakeCents int64, legs []LegGrade) (Grade, int64) {
	var winOdds []float64
	for _, l := range legs {
		switch l.Result {
		case Lost:
			return lost("a leg lost"), 0
		case Won:
			winOdds = append(winOdds, l.Odds)
		}
	}
	if len(winOdds) == 0 {
		return push("all legs pushed"), stakeCents
	}
	if len(winOdds) == len(legs) {
		return won("all legs won"), CombinedPayoutCents(stakeCents, winOdds)
	}
	return won(fmt.Sprintf("won with %d of %d legs pushed", len(legs)-len(winOdds), len(legs))),
		CombinedPayoutCents(stakeCents, winOdds)
}

// TeaserSpreadLine move a linha de handicap a favor do apostador.
func TeaserSpreadLine(line, points float64) float64 { return line + points }

// TeaserTotalLine move a linha de total a favor do apostador:
// over desce a linha, under sobe.
func TeaserTotalLine(over bool, line, points float64) float64 {
	if over {
		return line - points
	}
	return line + points
}

// Tabela fixa de odds de teaser: pontos de ajuste -> número de pernas -> odds
// americanas. Tiers fora da tabela são erro de integridade, não default.
var teaserOdds = map[float64]map[int]float64{
	6.0: {2: -110, 3: 160, 4: 260, 5: 400, 6: 600},
	6.5: {2: -120, 3: 140, 4: 240, 5: 350, 6: 500},
	7.0: {2: -130, 3: 120, 4: 200, 5: 300, 6: 450},
}

// TeaserOdds retorna as odds planas do tier (pontos, nº de pernas).
func TeaserOdds(points float64, legCount int) (float64, bool) {
	tiers, ok := teaserOdds[points]
	if !ok {
		return 0, false
	}
	odds, ok := tiers[legCount]
	return odds, ok
}

// ResolveTeaser resolve um teaser já graduado contra linhas ajustadas.
// Derrota em qualquer perna perde; pushes seguem a regra configurada na
// aposta: PUSH devolve a aposta, LOSE vira derrota, REVERT recalcula no tier
// inferior usando só as pernas vencedoras.
func ResolveTeaser(stakeCents int64, legs []LegGrade, points float64, rule TeaserPushRule) (Grade, int64, error) {
	wins := 0
	pushes := 0
	for _, l := range legs {
		switch l.Result {
		case Lost:
			return lost("a leg lost"), 0, nil
		case Won:
			wins++
		case Push:
			pushes++
		}
	}

	if pushes == 0 {
		odds, ok := TeaserOdds(points, len(legs))
		if !ok {
			return Grade{}, 0, fmt.Errorf("no teaser tier for %.1f points, %d legs", points, len(legs))
		}
		return won("all legs won"), PayoutCents(stakeCents, odds), nil
	}

	switch rule {
	case TeaserPushRuleLose:
		return lost(fmt.Sprintf("%d legs pushed under lose rule", pushes)), 0, nil
	case TeaserPushRuleRevert:
		// Sem pernas suficientes para um tier menor, a aposta inteira empata
		if wins < 2 {
			return push("reverted below minimum tier"), stakeCents, nil
		}
		odds, ok := TeaserOdds(points, wins)
		if !ok {
			return Grade{}, 0, fmt.Errorf("no teaser tier for %.1f points, %d legs", points, wins)
		}
		return won(fmt.Sprintf("reverted to %d-leg tier", wins)), PayoutCents(stakeCents, odds), nil
	default: // TeaserPushRulePush
		return push(fmt.Sprintf("%d legs pushed", pushes)), stakeCents, nil
	}
}

// ResolveIfBet percorre as pernas em ordem com aposta corrente acumulada:
// vitória multiplica a aposta corrente pelas odds da perna; derrota encerra a
// cadeia com perda total. Push depende da condição: IF_WIN_ONLY para a cadeia
// e devolve a aposta original; IF_WIN_OR_TIE carrega a mesma aposta adiante.
func ResolveIfBet(stakeCents int64, legs []LegGrade, cond IfCondition) (Grade, int64) {
	running := decimal.NewFromInt(stakeCents)
	wins := 0

	for i, l := range legs {
		switch l.Result {
		case Lost:
			return lost(fmt.Sprintf("leg %d lost, chain stopped", i+1)), 0
		case Push:
			if cond == IfWinOnly {
				return push(fmt.Sprintf("leg %d pushed, stake returned", i+1)), stakeCents
			}
			// IF_WIN_OR_TIE: mesma aposta segue para a próxima perna
		case Won:
			wins++
			running = running.Mul(Multiplier(l.Odds))
		}
	}

	if wins == 0 {
		return push("all legs pushed"), stakeCents
	}
	return won(fmt.Sprintf("chain completed with %d wins", wins)), toCents(running)
}

// ResolveBetItAll: mecânica de if-bet restrita a IF_WIN_ONLY, sempre rolando
// todos os ganhos intermediários para a perna seguinte.
func ResolveBetItAll(stakeCents int64, legs []LegGrade) (Grade, int64) {
	return ResolveIfBet(stakeCents, legs, IfWinOnly)
}

// ResolveReverse roda duas cadeias if-bet independentes sobre as mesmas
// pernas, uma em cada ordem, com metade da aposta cada, e soma os retornos.
func ResolveReverse(stakeCents int64, legs []LegGrade, cond IfCondition) (Grade, int64) {
	half := stakeCents / 2
	forward, fPayout := ResolveIfBet(half, legs, cond)

	reversed := make([]LegGrade, len(legs))
	for i, l := range legs {
		reversed[len(legs)-1-i] = l
	}
	backward, bPayout := ResolveIfBet(stakeCents-half, reversed, cond)

	total := fPayout + bPayout
	switch {
	case forward.Result == Won || backward.Result == Won:
		return won("at least one direction won"), total
	case total > 0:
		return push("no direction won, partial stake returned"), total
	default:
		return lost("both directions lost"), 0
	}
}

// ResolveRoundRobin gera todos os sub-parlays de tamanho groupSize a partir
// do pool de pernas, divide a aposta igualmente entre eles e soma os retornos
// dos sub-parlays vencedores e empatados. Só perde se todos perderem.
func ResolveRoundRobin(stakeCents int64, legs []LegGrade, groupSize int) (Grade, int64, error) {
	if groupSize < 2 || groupSize > len(legs) {
		return Grade{}, 0, fmt.Errorf("invalid round robin group size %d for %d legs", groupSize, len(legs))
	}

	combos := combinations(len(legs), groupSize)
	perCombo := decimal.NewFromInt(stakeCents).Div(decimal.NewFromInt(int64(len(combos))))

	total := decimal.Zero
	anyWon := false
	anyPush := false

	for _, combo := range combos {
		sub := make([]LegGrade, 0, groupSize)
		for _, idx := range combo {
			sub = append(sub, legs[idx])
		}

		comboStake := perCombo.Round(0).IntPart()
		g, payout := ResolveParlay(comboStake, sub)
		switch g.Result {
		case Won:
			anyWon = true
			total = total.Add(decimal.NewFromInt(payout))
		case Push:
			anyPush = true
			total = total.Add(perCombo)
		}
	}

	payout := toCents(total)
	switch {
	case anyWon:
		return won(fmt.Sprintf("%d sub-parlays", len(combos))), payout, nil
	case anyPush:
		return push("no sub-parlay won, pushes returned"), payout, nil
	default:
		return lost("every sub-parlay lost"), 0, nil
	}
}

// combinations enumera índices de combinações k a k, em ordem lexicográfica.
func combinations(n, k int) [][]int {
	var out [][]int
	combo := make([]int, k)
	var rec func(start, depth int)
	rec = func(start, depth int) {
		if depth == k {
			c := make([]int, k)
			copy(c, combo)
			out = append(out, c)
			return
		}
		for i := start; i <= n-(k-depth); i++ {
			combo[depth] = i
			rec(i+1, depth+1)
		}
	}
	rec(0, 0)
	return out
}
