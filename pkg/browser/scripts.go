package browser

// Scripts injected into the page for element extraction. Extraction tags
// each reported element with a data-argus-loc attribute so later actions can
// address it with a plain CSS selector; window.__argusLocSeq keeps locators
// unique across the tree pass and any fallback query on the same page state.

// axTreeScript walks the rendered DOM and returns accessibility records for
// interactive and landmark elements in document order. Stale tags from a
// previous snapshot are cleared first.
const axTreeScript = `(() => {
  document.querySelectorAll('[data-argus-loc]').forEach(el => el.removeAttribute('data-argus-loc'));
  window.__argusLocSeq = 0;

  const roleFor = (el) => {
    const explicit = el.getAttribute('role');
    if (explicit) return explicit;
    const tag = el.tagName.toLowerCase();
    switch (tag) {
      case 'a': return el.hasAttribute('href') ? 'link' : 'generic';
      case 'button': return 'button';
      case 'select': return el.multiple ? 'listbox' : 'combobox';
      case 'textarea': return 'textbox';
      case 'img': return 'img';
      case 'nav': return 'navigation';
      case 'main': return 'main';
      case 'header': return 'banner';
      case 'footer': return 'contentinfo';
      case 'form': return 'form';
      case 'table': return 'table';
      case 'h1': case 'h2': case 'h3': case 'h4': case 'h5': case 'h6': return 'heading';
      case 'input': {
        const type = (el.getAttribute('type') || 'text').toLowerCase();
        switch (type) {
          case 'button': case 'submit': case 'reset': case 'image': return 'button';
          case 'checkbox': return 'checkbox';
          case 'radio': return 'radio';
          case 'range': return 'slider';
          case 'search': return 'searchbox';
          default: return 'textbox';
        }
      }
      default: return '';
    }
  };

  const nameFor = (el) => {
    const aria = el.getAttribute('aria-label');
    if (aria) return aria.trim();
    const labelledBy = el.getAttribute('aria-labelledby');
    if (labelledBy) {
      const parts = labelledBy.split(/\s+/)
        .map(id => { const ref = document.getElementById(id); return ref ? ref.textContent.trim() : ''; })
        .filter(Boolean);
      if (parts.length) return parts.join(' ');
    }
    if (el.labels && el.labels.length) {
      const text = el.labels[0].textContent.trim();
      if (text) return text;
    }
    const tag = el.tagName.toLowerCase();
    if (tag === 'input') {
      const ph = el.getAttribute('placeholder');
      if (ph) return ph.trim();
      const type = (el.getAttribute('type') || '').toLowerCase();
      if (type === 'submit' || type === 'button') return (el.value || '').trim();
    }
    if (tag === 'img') return (el.getAttribute('alt') || '').trim();
    const title = el.getAttribute('title');
    const text = (el.textContent || '').replace(/\s+/g, ' ').trim();
    return text || (title ? title.trim() : '');
  };

  const visible = (el) => {
    const style = window.getComputedStyle(el);
    if (style.display === 'none' || style.visibility === 'hidden' || style.opacity === '0') return false;
    const rect = el.getBoundingClientRect();
    return rect.width > 0 && rect.height > 0;
  };

  const out = [];
  const walker = document.createTreeWalker(document.body, NodeFilter.SHOW_ELEMENT);
  for (let el = walker.nextNode(); el; el = walker.nextNode()) {
    const role = roleFor(el);
    if (!role || role === 'generic') continue;
    if (!visible(el)) continue;

    const loc = String(++window.__argusLocSeq);
    el.setAttribute('data-argus-loc', loc);

    const rect = el.getBoundingClientRect();
    const record = {
      role: role,
      name: nameFor(el),
      locator: loc,
      bbox: { x: rect.x, y: rect.y, w: rect.width, h: rect.height },
    };

    const tag = el.tagName.toLowerCase();
    if (tag === 'input' || tag === 'textarea' || tag === 'select') {
      record.value = el.value || '';
      record.disabled = !!el.disabled;
    } else if (el.getAttribute('aria-disabled') === 'true') {
      record.disabled = true;
    }
    if (role === 'checkbox' || role === 'radio') {
      record.checked = !!el.checked;
    } else if (el.hasAttribute('aria-checked')) {
      record.checked = el.getAttribute('aria-checked') === 'true';
    }
    if (el.hasAttribute('aria-selected')) {
      record.selected = el.getAttribute('aria-selected') === 'true';
    } else if (tag === 'option') {
      record.selected = !!el.selected;
    }

    out.push(record);
  }
  return out;
})()`

// queryElementsScript matches elements against CSS selectors, skipping any
// already tagged by the tree pass. The %s placeholder receives a JSON array
// of selectors.
const queryElementsScript = `((selectors) => {
  if (window.__argusLocSeq === undefined) window.__argusLocSeq = 0;

  const visible = (el) => {
    const style = window.getComputedStyle(el);
    if (style.display === 'none' || style.visibility === 'hidden' || style.opacity === '0') return false;
    const rect = el.getBoundingClientRect();
    return rect.width > 0 && rect.height > 0;
  };

  const nameFor = (el) => {
    const aria = el.getAttribute('aria-label');
    if (aria) return aria.trim();
    if (el.labels && el.labels.length) {
      const text = el.labels[0].textContent.trim();
      if (text) return text;
    }
    const ph = el.getAttribute('placeholder');
    if (ph) return ph.trim();
    return (el.textContent || '').replace(/\s+/g, ' ').trim();
  };

  const roleFor = (el) => {
    const explicit = el.getAttribute('role');
    if (explicit) return explicit;
    const tag = el.tagName.toLowerCase();
    if (tag === 'a') return 'link';
    if (tag === 'button') return 'button';
    if (tag === 'select') return 'combobox';
    if (tag === 'textarea') return 'textbox';
    if (tag === 'input') {
      const type = (el.getAttribute('type') || 'text').toLowerCase();
      if (type === 'button' || type === 'submit') return 'button';
      if (type === 'checkbox') return 'checkbox';
      if (type === 'radio') return 'radio';
      if (type === 'search') return 'searchbox';
      return 'textbox';
    }
    return 'generic';
  };

  const seen = new Set();
  const out = [];
  for (const selector of selectors) {
    let matches;
    try { matches = document.querySelectorAll(selector); } catch (e) { continue; }
    for (const el of matches) {
      if (seen.has(el)) continue;
      seen.add(el);
      if (el.hasAttribute('data-argus-loc')) continue;
      if (!visible(el)) continue;

      const loc = String(++window.__argusLocSeq);
      el.setAttribute('data-argus-loc', loc);

      const rect = el.getBoundingClientRect();
      const record = {
        role: roleFor(el),
        name: nameFor(el),
        locator: loc,
        bbox: { x: rect.x, y: rect.y, w: rect.width, h: rect.height },
      };
      const tag = el.tagName.toLowerCase();
      if (tag === 'input' || tag === 'textarea' || tag === 'select') {
        record.value = el.value || '';
        record.disabled = !!el.disabled;
      }
      if (el.type === 'checkbox' || el.type === 'radio') {
        record.checked = !!el.checked;
      }
      out.push(record);
    }
  }
  return out;
})(%s)`

// elementStateScript classifies a selector as ok, missing, detached or
// hidden. The %s placeholder receives the selector as a Go %q string.
const elementStateScript = `(() => {
  const el = document.querySelector(%q);
  if (!el) return 'missing';
  if (!el.isConnected) return 'detached';
  const style = window.getComputedStyle(el);
  if (style.display === 'none' || style.visibility === 'hidden') return 'hidden';
  const rect = el.getBoundingClientRect();
  if (rect.width === 0 && rect.height === 0) return 'hidden';
  return 'ok';
})()`

// selectValueScript sets a select element's value and fires input and change
// events. Returns false if no option matches.
const selectValueScript = `(() => {
  const el = document.querySelector(%q);
  if (!el) return false;
  const value = %s;
  let matched = false;
  for (const opt of el.options) {
    if (opt.value === value || opt.textContent.trim() === value) {
      el.value = opt.value;
      matched = true;
      break;
    }
  }
  if (!matched) return false;
  el.dispatchEvent(new Event('input', { bubbles: true }));
  el.dispatchEvent(new Event('change', { bubbles: true }));
  return true;
})()`

// hoverScript dispatches pointer hover events on a selector.
const hoverScript = `(() => {
  const el = document.querySelector(%q);
  if (!el) return false;
  const rect = el.getBoundingClientRect();
  const opts = { bubbles: true, clientX: rect.x + rect.width / 2, clientY: rect.y + rect.height / 2 };
  el.dispatchEvent(new MouseEvent('mouseover', opts));
  el.dispatchEvent(new MouseEvent('mouseenter', opts));
  el.dispatchEvent(new MouseEvent('mousemove', opts));
  return true;
})()`

// pageTextScript returns the page's visible text.
const pageTextScript = `(() => {
  return (document.body && document.body.innerText) ? document.body.innerText.trim() : '';
})()`
